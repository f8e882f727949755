package dex

// CodeStats contains statistics about a method body
type CodeStats struct {
	InstructionCount   int            // Total number of instructions
	CodeUnits          int            // Size of the body in 16-bit code units
	OpcodeDistribution map[Opcode]int // Distribution of opcodes
}

// Analyze walks the body once and returns its statistics.
func Analyze(code *CodeItem) *CodeStats {
	stats := &CodeStats{
		OpcodeDistribution: make(map[Opcode]int),
	}
	if code == nil {
		return stats
	}
	stats.CodeUnits = code.InsnsSizeInCodeUnits()
	for it := code.Begin(); !it.Done(); it.Next() {
		stats.InstructionCount++
		stats.OpcodeDistribution[it.Opcode()]++
	}
	return stats
}

// Merge adds other into s.
func (s *CodeStats) Merge(other *CodeStats) {
	s.InstructionCount += other.InstructionCount
	s.CodeUnits += other.CodeUnits
	for op, n := range other.OpcodeDistribution {
		s.OpcodeDistribution[op] += n
	}
}

// CountInstructions returns the number of instructions in the body
func (c *CodeItem) CountInstructions() int {
	count := 0
	for it := c.Begin(); !it.Done(); it.Next() {
		count++
	}
	return count
}
