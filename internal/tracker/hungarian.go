package tracker

import "math"

// hungarian solves the optimal track-to-detection assignment. It implements
// the Kuhn–Munkres algorithm in its Jonker–Volgenant potentials form, which
// finds the global minimum-cost matching in O(n³) time. A greedy
// nearest-neighbour pass can steal a detection from the track that needs it
// most and split an otherwise clean trajectory; the exact solver cannot.
//
// The cost matrix entry C[i][j] is 1 - IoU between track i and detection j.
// Entries at or above assignInf are treated as forbidden and never selected.
//
// Rows are processed in ascending track order, so among assignments of equal
// total cost the solver settles on the one favouring earlier rows. Together
// with the cost being 1 - IoU this yields the documented tie-break: higher
// IoU wins, and exact-cost ties go to the lower track ID.

const assignInf = 1e18 // stand-in for infinity in cost matrices

// solveAssignment solves the rectangular assignment problem for an n×m cost
// matrix. It returns assigned[i] = column index matched to row i, or -1 when
// row i is unassigned. Costs ≥ assignInf are forbidden pairs.
//
// Rectangular inputs are padded square with assignInf so excess rows or
// columns stay unmatched.
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if m == 0 {
		assigned := make([]int, n)
		for i := range assigned {
			assigned[i] = -1
		}
		return assigned
	}

	dim := n
	if m > dim {
		dim = m
	}

	// Padded square copy keeps the augmenting loop free of bounds checks.
	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			if i < n && j < m {
				c[i][j] = cost[i][j]
			} else {
				c[i][j] = assignInf
			}
		}
	}

	// Potentials method, 1-indexed internally for cleaner index arithmetic.
	const inf = math.MaxFloat64 / 2

	u := make([]float64, dim+1) // row potentials
	v := make([]float64, dim+1) // column potentials
	p := make([]int, dim+1)     // p[j] = row assigned to column j
	way := make([]int, dim+1)   // way[j] = previous column in augmenting path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0 // virtual column

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		// Augment along the path.
		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	// Extract the column assigned to each row.
	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 && p[j] <= dim {
			rowAssign[p[j]-1] = j - 1
		}
	}

	// Trim to original dimensions and drop forbidden pairs.
	assigned := make([]int, n)
	for i := 0; i < n; i++ {
		col := rowAssign[i]
		if col < 0 || col >= m || cost[i][col] >= assignInf {
			assigned[i] = -1
		} else {
			assigned[i] = col
		}
	}

	return assigned
}
