package testing

import (
	"math/rand"
	"time"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

const charSet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandString generates a random 10-symbol username from the lower- and
// uppercase alphabet, short enough for the varchar(20) columns.
func RandString() string {
	out := make([]byte, 10)
	for i := range out {
		out[i] = charSet[rand.Intn(len(charSet))]
	}
	return string(out)
}

// RandChatID generates a random positive chat id, wide enough that reruns
// against the same database are unlikely to collide.
func RandChatID() int64 {
	return rand.Int63n(1<<40) + 1
}
