package order

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

const NumberPrefix = "ORD-"

// NumberGenerator issues ORD-<base36 millis> numbers. Within one process the
// timestamp component is forced to increase so two orders never share a number.
type NumberGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now}
}

func (g *NumberGenerator) NextNumber() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return NumberPrefix + strings.ToUpper(strconv.FormatInt(ms, 36))
}

func IsNumber(s string) bool {
	rest, ok := strings.CutPrefix(s, NumberPrefix)
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.ParseInt(strings.ToLower(rest), 36, 64)
	return err == nil
}
