package ai

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity вычисляет косинусное сходство двух векторов.
// Диапазон [-1, 1], 1 = идентичные. 0 при нулевой норме.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}

// CosineDistance = 1 - CosineSimilarity. Диапазон [0, 2].
func CosineDistance(a, b []float32) float64 {
	return 1.0 - CosineSimilarity(a, b)
}

// componentMedian вычисляет покомпонентную медиану набора векторов.
// Медиана вместо среднего: устойчива к выбросам эмбеддингов.
func componentMedian(embeddings [][]float32) []float32 {
	if len(embeddings) == 0 {
		return nil
	}
	dim := len(embeddings[0])
	out := make([]float32, dim)
	column := make([]float64, 0, len(embeddings))
	for d := 0; d < dim; d++ {
		column = column[:0]
		for _, emb := range embeddings {
			column = append(column, float64(emb[d]))
		}
		sort.Float64s(column)
		n := len(column)
		if n%2 == 1 {
			out[d] = float32(column[n/2])
		} else {
			out[d] = float32((column[n/2-1] + column[n/2]) / 2)
		}
	}
	return out
}

// cluster промежуточное состояние agglomerative кластеризации
type cluster struct {
	members []int // индексы исходных эмбеддингов

	// Для ward linkage
	centroid []float64
	size     float64
}

// AverageLinkageCosine выполняет agglomerative кластеризацию с average
// linkage по косинусному расстоянию и порогом расстояния: пары кластеров
// сливаются, пока минимальное среднее расстояние между ними меньше
// threshold. Количество кластеров не ограничено.
// Возвращает метку кластера для каждого эмбеддинга.
func AverageLinkageCosine(embeddings [][]float32, threshold float64) []int {
	n := len(embeddings)
	if n == 0 {
		return nil
	}

	// Матрица попарных расстояний
	dist := make([][]float64, n)
	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := CosineDistance(embeddings[i], embeddings[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	clusters := make([]*cluster, n)
	for i := 0; i < n; i++ {
		clusters[i] = &cluster{members: []int{i}}
	}

	// Среднее попарное расстояние между двумя кластерами
	avgDist := func(a, b *cluster) float64 {
		sum := 0.0
		for _, i := range a.members {
			for _, j := range b.members {
				sum += dist[i][j]
			}
		}
		return sum / float64(len(a.members)*len(b.members))
	}

	for len(clusters) > 1 {
		bestI, bestJ := -1, -1
		bestD := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if d := avgDist(clusters[i], clusters[j]); d < bestD {
					bestD = d
					bestI, bestJ = i, j
				}
			}
		}
		if bestD >= threshold {
			break
		}
		clusters[bestI].members = append(clusters[bestI].members, clusters[bestJ].members...)
		clusters = append(clusters[:bestJ], clusters[bestJ+1:]...)
	}

	labels := make([]int, n)
	for id, c := range clusters {
		for _, i := range c.members {
			labels[i] = id
		}
	}
	return labels
}

// WardEuclidean выполняет agglomerative кластеризацию методом Уорда
// (евклидова метрика) ровно в k кластеров. Критерий слияния — минимальный
// прирост внутрикластерной дисперсии: (nA*nB/(nA+nB)) * ||cA-cB||^2.
// Возвращает метку кластера для каждого эмбеддинга.
func WardEuclidean(embeddings [][]float32, k int) []int {
	n := len(embeddings)
	if n == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	clusters := make([]*cluster, n)
	for i, emb := range embeddings {
		centroid := make([]float64, len(emb))
		for d, v := range emb {
			centroid[d] = float64(v)
		}
		clusters[i] = &cluster{members: []int{i}, centroid: centroid, size: 1}
	}

	wardCost := func(a, b *cluster) float64 {
		d := floats.Distance(a.centroid, b.centroid, 2)
		return a.size * b.size / (a.size + b.size) * d * d
	}

	for len(clusters) > k {
		bestI, bestJ := -1, -1
		bestCost := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if cost := wardCost(clusters[i], clusters[j]); cost < bestCost {
					bestCost = cost
					bestI, bestJ = i, j
				}
			}
		}

		a, b := clusters[bestI], clusters[bestJ]
		merged := make([]float64, len(a.centroid))
		floats.AddScaled(merged, a.size, a.centroid)
		floats.AddScaled(merged, b.size, b.centroid)
		floats.Scale(1/(a.size+b.size), merged)

		a.members = append(a.members, b.members...)
		a.centroid = merged
		a.size += b.size
		clusters = append(clusters[:bestJ], clusters[bestJ+1:]...)
	}

	labels := make([]int, n)
	for id, c := range clusters {
		for _, i := range c.members {
			labels[i] = id
		}
	}
	return labels
}

// largestCluster возвращает метку самого крупного кластера и его размер
func largestCluster(labels []int) (int, int) {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}
	best, bestCount := -1, 0
	for l, c := range counts {
		if c > bestCount {
			best, bestCount = l, c
		}
	}
	return best, bestCount
}
