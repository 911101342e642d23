package capture

// Sample-rate inference from chunk sizes.
//
// When the feed never announces its format, we fall back to watching the size
// of consecutive binary frames. Platforms emit fixed-duration frames (20ms of
// interleaved stereo 16-bit PCM), so a stable chunk size maps onto a sample
// rate. This is best-effort inference, not a guarantee: a platform that
// changes its framing breaks the table, which is why explicit metadata from
// the stream always wins.

const (
	// DefaultSampleRate is used when no metadata arrives and no size band
	// matches. 16kHz is the platform's common rate.
	DefaultSampleRate = 16000

	// rateMinSamples chunk sizes must be observed before inferring.
	rateMinSamples = 5

	// rateTolerance is the allowed deviation (bytes) of every observation
	// from the running mean before the size is considered stable.
	rateTolerance = 64
)

// chunkSizeBands maps stable frame sizes to sample rates, assuming 20ms
// frames of interleaved stereo 16-bit PCM (bytes = rate * 0.02 * 2ch * 2B).
var chunkSizeBands = []struct {
	size int
	rate int
}{
	{size: 640, rate: 8000},
	{size: 1280, rate: 16000},
	{size: 1920, rate: 24000},
	{size: 3840, rate: 48000},
}

// rateDetector accumulates chunk sizes until they stabilize, then resolves a
// sample rate once. An explicit rate (from metadata or config) short-circuits
// detection.
type rateDetector struct {
	sizes    []int
	sum      int
	resolved int
}

func newRateDetector(forced int) *rateDetector {
	return &rateDetector{resolved: forced}
}

// SetExplicit records a rate announced by the stream itself.
func (d *rateDetector) SetExplicit(rate int) {
	if rate > 0 {
		d.resolved = rate
	}
}

// Observe feeds one chunk size. Returns the resolved rate and true once
// resolution has happened (explicitly or by inference).
func (d *rateDetector) Observe(size int) (int, bool) {
	if d.resolved > 0 {
		return d.resolved, true
	}

	d.sizes = append(d.sizes, size)
	d.sum += size
	if len(d.sizes) < rateMinSamples {
		return 0, false
	}
	// Sliding window of the last rateMinSamples observations
	if len(d.sizes) > rateMinSamples {
		d.sum -= d.sizes[0]
		d.sizes = d.sizes[1:]
	}

	mean := d.sum / len(d.sizes)
	for _, s := range d.sizes {
		if diff := s - mean; diff > rateTolerance || diff < -rateTolerance {
			return 0, false
		}
	}

	d.resolved = rateForChunkSize(mean)
	return d.resolved, true
}

// Rate returns the resolved rate, or DefaultSampleRate if never resolved.
func (d *rateDetector) Rate() int {
	if d.resolved > 0 {
		return d.resolved
	}
	return DefaultSampleRate
}

func rateForChunkSize(mean int) int {
	for _, band := range chunkSizeBands {
		diff := mean - band.size
		if diff <= rateTolerance && diff >= -rateTolerance {
			return band.rate
		}
	}
	return DefaultSampleRate
}
