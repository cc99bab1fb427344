// Package analysis reduces run traces to spectra and decay estimates.
//
//   - [Spectrum]: complex FID spectrum of Mx + iMy
//   - [PeakFrequency]: strongest precession frequency in a trace
//   - [EstimateT2]: apparent transverse decay time from the FID envelope
//   - [TransversePath]: the Mx/My trajectory of the sample
//
// Frequencies are angular, in radians per unit time, so a sample
// precessing in a field B0 peaks at -Gamma*B0.
//
//	spec, err := analysis.Spectrum(result.Trace, true)
//	if err != nil {
//	    return err
//	}
//	peak := spec.Peak()
package analysis
