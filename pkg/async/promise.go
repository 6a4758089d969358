package async

// Promise runs f in its own goroutine. The returned channel is buffered so
// the goroutine never leaks when nobody reads the result.
func Promise[R any](f func() R) <-chan R {
	out := make(chan R, 1)
	go func() {
		out <- f()
	}()
	return out
}
