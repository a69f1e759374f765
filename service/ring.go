package service

import "evpilot/models"

// History is a fixed-capacity ring of telemetry points; once full the
// oldest point is evicted on every push.
type History struct {
	points []models.HistoryPoint
	head   int
	size   int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		points: make([]models.HistoryPoint, capacity),
	}
}

func (h *History) Push(point models.HistoryPoint) {
	h.points[h.head] = point
	h.head = (h.head + 1) % len(h.points)
	if h.size < len(h.points) {
		h.size++
	}
}

func (h *History) Len() int {
	return h.size
}

func (h *History) Cap() int {
	return len(h.points)
}

// Points returns the series oldest first.
func (h *History) Points() []models.HistoryPoint {
	result := make([]models.HistoryPoint, 0, h.size)
	start := h.head - h.size
	if start < 0 {
		start += len(h.points)
	}
	for i := 0; i < h.size; i++ {
		result = append(result, h.points[(start+i)%len(h.points)])
	}
	return result
}
