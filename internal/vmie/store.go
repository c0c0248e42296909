package vmie

// store holds the VM's heap-like reference values (ARR/MAP), addressed by a
// 32-bit handle embedded in a Val's Bits.
type store struct {
	arrays [][]Val
	maps   []map[Val]Val
}

func newStore() *store {
	return &store{}
}

func (s *store) newArray() int32 {
	s.arrays = append(s.arrays, nil)
	return int32(len(s.arrays) - 1)
}

func (s *store) array(h int32) ([]Val, error) {
	if h < 0 || int(h) >= len(s.arrays) {
		return nil, ErrBadHandle
	}

	return s.arrays[h], nil
}

func (s *store) setArray(h int32, v []Val) error {
	if h < 0 || int(h) >= len(s.arrays) {
		return ErrBadHandle
	}

	s.arrays[h] = v

	return nil
}

func (s *store) newMap() int32 {
	s.maps = append(s.maps, map[Val]Val{})
	return int32(len(s.maps) - 1)
}

func (s *store) mapAt(h int32) (map[Val]Val, error) {
	if h < 0 || int(h) >= len(s.maps) {
		return nil, ErrBadHandle
	}

	return s.maps[h], nil
}
