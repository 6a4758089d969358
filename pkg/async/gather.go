package async

type Pair[R1 any, R2 any] struct {
	R1 R1
	R2 R2
}

// Gather2 waits for both channels and delivers their values together.
func Gather2[R1 any, R2 any](c1 <-chan R1, c2 <-chan R2) <-chan Pair[R1, R2] {
	return Promise(func() Pair[R1, R2] {
		return Pair[R1, R2]{<-c1, <-c2}
	})
}
