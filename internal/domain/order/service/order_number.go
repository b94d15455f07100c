package service

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// NumberGenerator 订单号生成器
type NumberGenerator interface {
	// Random 形如 ORD20240115-123456
	Random(now time.Time) string
	// Fallback 随机号多次碰撞后使用，进程内单调递增
	Fallback(now time.Time) string
}

type numberGenerator struct {
	counter atomic.Uint64
	intN    func(n int) int
}

// NewNumberGenerator 默认生成器，计数器以当前时间为种子
func NewNumberGenerator() NumberGenerator {
	g := &numberGenerator{intN: rand.IntN}
	g.counter.Store(uint64(time.Now().UnixNano()))
	return g
}

func (g *numberGenerator) Random(now time.Time) string {
	return "ORD" + now.Format("20060102") + "-" + strconv.Itoa(100000+g.intN(900000))
}

func (g *numberGenerator) Fallback(now time.Time) string {
	n := g.counter.Add(1)
	return "ORD" + now.Format("20060102") + "-X" + strings.ToUpper(strconv.FormatUint(n, 36))
}
