package highlights

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/types"
)

const opParse = "parse selection"

// ParseRange parses a "start,end" answer in seconds. The answer is untrusted
// model output: anything other than exactly two finite numbers with
// 0 <= start < end is rejected.
func ParseRange(answer string) (types.TimeRange, error) {
	t := strings.TrimSpace(answer)
	left, right, ok := strings.Cut(t, ",")
	if !ok {
		return types.TimeRange{}, invalid("expected two comma-separated numbers, got %q", truncate(t, 80))
	}
	start, err := parseSeconds(left)
	if err != nil {
		return types.TimeRange{}, invalid("start: %v", err)
	}
	end, err := parseSeconds(right)
	if err != nil {
		return types.TimeRange{}, invalid("end: %v", err)
	}
	r := types.TimeRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return types.TimeRange{}, invalid("%v", err)
	}
	return r, nil
}

func parseSeconds(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", truncate(s, 40))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}

func invalid(format string, args ...any) error {
	return apperr.New(apperr.KindInvalidSelection, opParse, fmt.Sprintf(format, args...))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
