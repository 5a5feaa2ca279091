package world

import (
	"errors"
	"fmt"

	"github.com/annel0/voxelgen/internal/vec"
)

// TilePool — арена переиспользуемых тайлов со стеком свободных индексов.
// Каждый тайл находится либо в стеке свободных (неактивен), либо в активной сетке.
// Общее число тайлов только растёт.
type TilePool struct {
	sub    Substrate
	tiles  []Tile
	free   []TileID
	active int
}

// NewTilePool создаёт пул и заранее создаёт warmup неактивных тайлов
func NewTilePool(sub Substrate, warmup int) *TilePool {
	if warmup < 0 {
		warmup = 0
	}
	p := &TilePool{
		sub:   sub,
		tiles: make([]Tile, 0, warmup),
		free:  make([]TileID, 0, warmup),
	}
	for i := 0; i < warmup; i++ {
		p.createTile()
	}
	return p
}

// createTile создаёт один неактивный тайл и кладёт его в стек свободных
func (p *TilePool) createTile() {
	unit := p.sub.CreateUnit()
	p.sub.SetActive(unit, false)

	id := TileID(len(p.tiles))
	p.tiles = append(p.tiles, Tile{ID: id, Unit: unit})
	p.free = append(p.free, id)
}

// Acquire выдаёт активный тайл в указанной позиции.
// При пустом стеке создаётся ровно один новый тайл — пул растёт, а не отказывает.
func (p *TilePool) Acquire(pos vec.Vec3Float) TileID {
	if len(p.free) == 0 {
		p.createTile()
	}

	last := len(p.free) - 1
	id := p.free[last]
	p.free = p.free[:last]

	t := &p.tiles[id]
	t.Active = true
	t.Position = pos
	p.sub.SetPosition(t.Unit, pos)
	p.sub.SetActive(t.Unit, true)
	if !t.HasProbe {
		p.sub.AttachProbe(t.Unit)
		t.HasProbe = true
	}

	p.active++
	return id
}

// Release возвращает тайл в пул, снимая с него зонд.
// Повторное освобождение отклоняется с ErrDoubleRelease, состояние пула не меняется.
func (p *TilePool) Release(id TileID) error {
	if !p.valid(id) {
		return fmt.Errorf("%w: %d", ErrUnknownTile, id)
	}

	t := &p.tiles[id]
	if !t.Active {
		return fmt.Errorf("%w: %d", ErrDoubleRelease, id)
	}

	p.DetachProbe(id)
	t.Active = false
	p.sub.SetActive(t.Unit, false)
	p.free = append(p.free, id)
	p.active--
	return nil
}

// ReleaseAll освобождает набор тайлов и возвращает объединённую ошибку
func (p *TilePool) ReleaseAll(ids []TileID) error {
	var errs []error
	for _, id := range ids {
		if err := p.Release(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DetachProbe снимает зонд с тайла, если он есть
func (p *TilePool) DetachProbe(id TileID) {
	if !p.valid(id) {
		return
	}
	t := &p.tiles[id]
	if t.HasProbe {
		p.sub.DetachProbe(t.Unit)
		t.HasProbe = false
	}
}

// Tile возвращает копию состояния тайла
func (p *TilePool) Tile(id TileID) (Tile, bool) {
	if !p.valid(id) {
		return Tile{}, false
	}
	return p.tiles[id], true
}

// Stats возвращает счётчики пула
func (p *TilePool) Stats() PoolStats {
	return PoolStats{
		Active:   p.active,
		Inactive: len(p.free),
		Total:    len(p.tiles),
	}
}

func (p *TilePool) valid(id TileID) bool {
	return id >= 0 && int(id) < len(p.tiles)
}
