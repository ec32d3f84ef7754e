package bitpack

// Shaped is a flat sequence grouped into equal-size chunks. Every Shaped is
// indexed the same way regardless of its shape: by chunk, then by row within
// the chunk. A flat sequence has one-element chunks with one row each; a 1-D
// shape {n} has chunks of n elements in one row; a 2-D shape {r, c} has
// chunks of r rows of c elements.
type Shaped[T any] struct {
	data  []T
	shape []int
}

// Reshape groups data according to shape. An absent or invalid shape (more
// than two dimensions, a non-positive dimension, or a chunk size that does not
// divide the length of data) leaves the sequence flat.
func Reshape[T any](data []T, shape ...int) Shaped[T] {
	if !validShape(len(data), shape) {
		return Shaped[T]{data: data}
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return Shaped[T]{data: data, shape: s}
}

func validShape(n int, shape []int) bool {
	if len(shape) == 0 || len(shape) > 2 {
		return false
	}
	size := 1
	for _, d := range shape {
		if d <= 0 {
			return false
		}
		size *= d
	}
	return n%size == 0
}

// Shape returns the chunk shape, or nil if the sequence is flat.
func (s Shaped[T]) Shape() []int {
	if s.shape == nil {
		return nil
	}
	c := make([]int, len(s.shape))
	copy(c, s.shape)
	return c
}

func (s Shaped[T]) chunkSize() int {
	size := 1
	for _, d := range s.shape {
		size *= d
	}
	return size
}

// Len returns the number of chunks.
func (s Shaped[T]) Len() int {
	return len(s.data) / s.chunkSize()
}

// Chunk returns the elements of chunk i.
func (s Shaped[T]) Chunk(i int) []T {
	n := s.chunkSize()
	return s.data[i*n : (i+1)*n : (i+1)*n]
}

// Rows returns chunk i split into its rows.
func (s Shaped[T]) Rows(i int) [][]T {
	chunk := s.Chunk(i)
	cols := len(chunk)
	if len(s.shape) == 2 {
		cols = s.shape[1]
	}
	rows := make([][]T, 0, len(chunk)/cols)
	for j := 0; j < len(chunk); j += cols {
		rows = append(rows, chunk[j:j+cols:j+cols])
	}
	return rows
}

// Nested returns every chunk split into rows.
func (s Shaped[T]) Nested() [][][]T {
	out := make([][][]T, s.Len())
	for i := range out {
		out[i] = s.Rows(i)
	}
	return out
}

// Flatten returns the underlying flat sequence.
func (s Shaped[T]) Flatten() []T {
	return s.data
}
