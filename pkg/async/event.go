package async

import (
	"bufio"
	"io"
	"os"
)

// EnterKey is closed once a line is read from stdin.
func EnterKey() <-chan struct{} {
	return LineFrom(os.Stdin)
}

func LineFrom(r io.Reader) <-chan struct{} {
	return Job(func() {
		bufio.NewReader(r).ReadBytes('\n')
	})
}
