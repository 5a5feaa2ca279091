package world

import (
	"sync"

	"github.com/annel0/voxelgen/internal/vec"
)

// Spectator — простой актёр: позиция, точка возрождения и флаг контроллера движения.
// Телепорт при включённом контроллере засчитывается как нарушение.
type Spectator struct {
	mu                sync.Mutex
	position          vec.Vec3Float
	spawnPoint        vec.Vec3Float
	controllerEnabled bool
	teleports         int
	violations        int
}

// NewSpectator создаёт актёра с включённым контроллером движения
func NewSpectator(pos vec.Vec3Float) *Spectator {
	return &Spectator{position: pos, spawnPoint: pos, controllerEnabled: true}
}

func (a *Spectator) DisableMotionController() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.controllerEnabled = false
}

func (a *Spectator) EnableMotionController() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.controllerEnabled = true
}

// SetTransform перемещает актёра и точку возрождения
func (a *Spectator) SetTransform(pos vec.Vec3Float) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.controllerEnabled {
		a.violations++
	}
	a.position = pos
	a.spawnPoint = pos
	a.teleports++
}

func (a *Spectator) Position() vec.Vec3Float {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

func (a *Spectator) SpawnPoint() vec.Vec3Float {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.spawnPoint
}

func (a *Spectator) ControllerEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.controllerEnabled
}

// Teleports возвращает число перемещений и число перемещений при включённом контроллере
func (a *Spectator) Teleports() (total, violations int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.teleports, a.violations
}
