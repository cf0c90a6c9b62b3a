package game

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. The real implementation is time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealScheduler schedules on wall-clock time.
var RealScheduler Scheduler = realScheduler{}

// cryptoIntn returns a uniform integer in [0, n) from crypto/rand.
func cryptoIntn(n int) int {
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("game: crypto/rand unavailable: " + err.Error())
	}
	return int(nBig.Int64())
}
