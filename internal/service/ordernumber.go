package service

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const maxOrderNumberAttempts = 5

type OrderNumberFunc func(now time.Time) string

// NewOrderNumber renders ORD-<UTC yyyyMMddHHmmss>-<4 random digits>.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%d", now.UTC().Format("20060102150405"), 1000+rand.IntN(9000))
}
