package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/mzharov/sketchroom/models"
)

type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) EmitCursor(pos models.Point) error {
	args := m.Called(pos)
	return args.Error(0)
}

func (m *MockEmitter) EmitLiveStroke(points []models.Point, color string, size float64) error {
	args := m.Called(points, color, size)
	return args.Error(0)
}

func (m *MockEmitter) EmitDraw(points []models.Point, color string, size float64, tool models.Tool) error {
	args := m.Called(points, color, size, tool)
	return args.Error(0)
}
