package tracking

const escape = 0x1b

// isTerminator reports whether b ends a CSI sequence: letters plus
// '@', '`' and '~'.
func isTerminator(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b == '@' || b == '`' || b == '~':
		return true
	}
	return false
}

// splitSequences locates candidate CSI sequences in an arbitrary byte
// stream. Each returned sequence spans ESC '[' through its terminator
// inclusive. A trailing sequence with no terminator yet is returned in
// rest so the caller can retry once more bytes arrive; everything else
// is consumed.
func splitSequences(buf []byte) (sequences [][]byte, rest []byte) {
	i := 0
	for i < len(buf) {
		if buf[i] != escape {
			i++
			continue
		}
		if i+1 >= len(buf) {
			// Lone ESC at end of chunk; could be the start of a sequence.
			return sequences, buf[i:]
		}
		if buf[i+1] != '[' {
			// Some other escape form; not a CSI, skip the ESC.
			i++
			continue
		}

		end := -1
		for j := i + 2; j < len(buf); j++ {
			if isTerminator(buf[j]) {
				end = j
				break
			}
		}
		if end < 0 {
			return sequences, buf[i:]
		}
		seq := make([]byte, end-i+1)
		copy(seq, buf[i:end+1])
		sequences = append(sequences, seq)
		i = end + 1
	}
	return sequences, nil
}
