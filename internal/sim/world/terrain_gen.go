package world

import "waymesh.ai/internal/sim/nav/geom"

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}

// generate shapes a deterministic default landscape: gentle height
// variation, scattered rock walls, a lake, and a few sink holes. Tests build
// their own terrain through the mutators instead.
func (t *terrainMap) generate(seed int64) {
	for z := 0; z < t.rows; z++ {
		for x := 0; x < t.cols; x++ {
			c := geom.Cell{X: x, Z: z}
			h := hash2(seed, x/8, z/8)
			t.SetHeight(c, float64(h%5)*0.25)

			r := hash2(seed+1, x, z)
			switch {
			case r%97 == 0:
				t.SetWall(c)
			case r%211 == 0:
				t.SetHole(c)
			}
		}
	}

	// One lake in the third quadrant, deep in the middle, shallow rim.
	lakeCX, lakeCZ := t.cols/4, 3*t.rows/4
	for dz := -6; dz <= 6; dz++ {
		for dx := -6; dx <= 6; dx++ {
			d := dx*dx + dz*dz
			if d > 36 {
				continue
			}
			c := geom.Cell{X: lakeCX + dx, Z: lakeCZ + dz}
			depth := 2.0
			if d > 20 {
				depth = 0.6
			}
			t.SetLiquid(c, depth)
			t.SetHeight(c, 0)
			t.ClearWall(c)
		}
	}

	// Keep the spawn area clear.
	for dz := -2; dz <= 2; dz++ {
		for dx := -2; dx <= 2; dx++ {
			c := geom.Cell{X: t.cols/2 + dx, Z: t.rows/2 + dz}
			t.ClearWall(c)
			if t.inGrid(c) {
				t.hole[t.idx(c)] = false
			}
		}
	}
}
