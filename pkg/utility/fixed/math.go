package fixed

import "sort"

func Mean(points []Point) Point {
	if len(points) == 0 {
		return Zero
	}
	sum := Zero
	for _, point := range points {
		sum = sum.Add(point)
	}
	return sum.DivInt(len(points))
}

func Sum(points []Point) Point {
	sum := Zero
	for _, point := range points {
		sum = sum.Add(point)
	}
	return sum
}

// SampleStdDev uses the n-1 denominator.
func SampleStdDev(points []Point, mean Point) Point {
	if len(points) <= 1 {
		return Zero
	}

	sum := Zero
	for _, point := range points {
		diff := point.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}

	return sum.DivInt(len(points) - 1).Sqrt()
}

func Median(points []Point) Point {
	if len(points) == 0 {
		return Zero
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lt(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).DivInt(2)
}
