package spectrum

// Snapshot is one magnitude spectrum. Magnitudes[0] is DC and the last bin
// sits just below the Nyquist frequency.
type Snapshot struct {
	Magnitudes []uint8
	SampleRate float64
}

const DefaultNoiseFloor = 50

// Peak returns the bin with the largest magnitude. When several adjacent
// bins share the maximum (a saturated main lobe) the middle one is used.
func (s Snapshot) Peak() (bin int, magnitude uint8) {
	for i, m := range s.Magnitudes {
		if m > magnitude {
			bin, magnitude = i, m
		}
	}
	end := bin
	for end+1 < len(s.Magnitudes) && s.Magnitudes[end+1] == magnitude {
		end++
	}
	return (bin + end) / 2, magnitude
}

func (s Snapshot) BinFrequency(bin int) float64 {
	if len(s.Magnitudes) == 0 {
		return 0
	}
	return float64(bin) * (s.SampleRate / 2) / float64(len(s.Magnitudes))
}

// Dominant returns the frequency of the peak bin, or false when the peak is
// below noiseFloor.
func (s Snapshot) Dominant(noiseFloor uint8) (float64, bool) {
	bin, magnitude := s.Peak()
	if magnitude < noiseFloor || magnitude == 0 {
		return 0, false
	}
	return s.BinFrequency(bin), true
}

// BinOf is the bin a frequency falls into for a snapshot with the given
// shape. Used to build synthetic snapshots.
func BinOf(freq, sampleRate float64, bins int) int {
	return int(freq*float64(bins)/(sampleRate/2) + 0.5)
}
