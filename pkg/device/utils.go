package device

import "golang.org/x/exp/rand"

func cleari32(a []int32) {
	for i := range a {
		a[i] = 0
	}
}

func randi32(a []int32) {
	for i := range a {
		a[i] = rand.Int31()
	}
}

// noisei32 adds uniform noise of the given peak to a, saturating.
func noisei32(r *rand.Rand, a []int32, peak float64) {
	for i := range a {
		a[i] = addi32(a[i], int64((r.Float64()*2-1)*peak*0x7fffffff))
	}
}

func addi32(a int32, b int64) int32 {
	sum := int64(a) + b
	if sum > 0x7fffffff {
		sum = 0x7fffffff
	} else if sum < -0x80000000 {
		sum = -0x80000000
	}
	return int32(sum)
}

func sumi32(a, b, c []int32) {
	for i := range a {
		c[i] = addi32(a[i], int64(b[i]))
	}
}

func alloci32(n int) []int32 {
	return make([]int32, n)
}
