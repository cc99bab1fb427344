package bloch

import "errors"

// Domain errors for pulse, gradient and sample operations.
var (
	// ErrUnknownPulseKind indicates an RF envelope kind other than rect or sinc.
	ErrUnknownPulseKind = errors.New("bloch: unknown pulse kind")

	// ErrInvalidAmplitude indicates a non-positive or non-finite RF amplitude.
	ErrInvalidAmplitude = errors.New("bloch: RF amplitude must be positive and finite")

	// ErrInvalidAngle indicates a non-positive or non-finite flip angle.
	ErrInvalidAngle = errors.New("bloch: flip angle must be positive and finite")

	// ErrNonFiniteDuration indicates the pulse duration would not be finite.
	ErrNonFiniteDuration = errors.New("bloch: pulse duration is not finite")

	// ErrInvalidGradient indicates a non-finite gradient dephase or direction.
	ErrInvalidGradient = errors.New("bloch: gradient pulse parameters must be finite")

	// ErrEmptySample indicates a sample without isochromats.
	ErrEmptySample = errors.New("bloch: sample has no isochromats")

	// ErrInvalidRepetition indicates an unusable repeated-excitation setup.
	ErrInvalidRepetition = errors.New("bloch: invalid repetition")

	// ErrCheckpointMismatch indicates a checkpoint taken on a different sample.
	ErrCheckpointMismatch = errors.New("bloch: checkpoint does not match sample")
)
