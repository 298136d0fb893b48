package extract

import (
	"strings"
	"time"

	"github.com/standardbeagle/semindex/internal/types"
)

// computeMetrics derives the FileMetrics row for one file from its raw
// text (line counts) and the symbols/imports the walk already extracted,
// avoiding a second tree-sitter pass.
func computeMetrics(path string, content []byte, symbols []types.Symbol, imports []types.Import, complexitySum int) types.FileMetrics {
	var lines []string
	if len(content) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	}
	total := len(lines)
	blank := 0
	comment := 0

	inBlockComment := false
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		switch {
		case trimmed == "":
			blank++
		case inBlockComment:
			comment++
			if strings.Contains(trimmed, "*/") {
				inBlockComment = false
			}
		case strings.HasPrefix(trimmed, "//"):
			comment++
		case strings.HasPrefix(trimmed, "/*"):
			comment++
			if !strings.Contains(trimmed, "*/") {
				inBlockComment = true
			}
		}
	}
	code := total - blank - comment

	var classCount, functionCount, exportCount int
	for _, s := range symbols {
		switch s.Kind {
		case types.KindClass:
			classCount++
		case types.KindFunction:
			functionCount++
		}
		if s.Exported {
			exportCount++
		}
	}

	avg := 0.0
	if functionCount > 0 {
		avg = float64(complexitySum) / float64(functionCount)
	}

	return types.FileMetrics{
		FilePath:      path,
		TotalLines:    total,
		CodeLines:     code,
		CommentLines:  comment,
		BlankLines:    blank,
		ComplexitySum: complexitySum,
		ComplexityAvg: avg,
		ImportCount:   len(imports),
		ExportCount:   exportCount,
		ClassCount:    classCount,
		FunctionCount: functionCount,
		LastAnalyzed:  time.Now().Unix(),
	}
}
