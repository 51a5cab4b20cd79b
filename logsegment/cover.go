package logsegment

import "deltaglass.dev/deltaglass/logpath"

// FindCommitCover selects the minimal set of commit and compaction files
// covering every version of the segment's commit range, newest first.
// Scanning from the highest version down: a compaction ending exactly at the
// current position is taken over single commits, preferring the widest such
// compaction, and never overlapping territory already covered. The result
// never contains both a commit and a compaction covering the same version.
func (s *LogSegment) FindCommitCover() []*logpath.ParsedLogPath {
	commits := s.AscendingCommitFiles
	if len(commits) == 0 {
		return nil
	}
	lowest := commits[0].Version

	// Among compactions ending at the same version, keep the one with the
	// lowest start. Compactions reaching below the segment are unusable.
	widestEndingAt := make(map[uint64]*logpath.ParsedLogPath)
	for _, c := range s.AscendingCompactionFiles {
		if c.Version < lowest || c.CompactionHi > s.EndVersion {
			continue
		}
		if best, ok := widestEndingAt[c.CompactionHi]; !ok || c.Version < best.Version {
			widestEndingAt[c.CompactionHi] = c
		}
	}

	var cover []*logpath.ParsedLogPath
	pos := commits[len(commits)-1].Version
	for {
		if c, ok := widestEndingAt[pos]; ok {
			cover = append(cover, c)
			if c.Version <= lowest {
				break
			}
			pos = c.Version - 1
		} else {
			// Contiguity guarantees a commit file at every position.
			cover = append(cover, commits[pos-lowest])
			if pos <= lowest {
				break
			}
			pos--
		}
	}
	return cover
}
