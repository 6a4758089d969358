package async

func Await[R any](a <-chan R) R {
	return <-a
}

func Await2[R1 any, R2 any](a <-chan Pair[R1, R2]) (R1, R2) {
	r := <-a
	return r.R1, r.R2
}
