package world

import "github.com/annel0/voxelgen/internal/vec"

// UnitHandle — непрозрачный идентификатор юнита (куба) на стороне подложки рендера/коллизий
type UnitHandle uint32

// Substrate представляет подложку рендера и коллизий, которой управляет конвейер.
// Все вызовы выполняются из потока конвейера.
type Substrate interface {
	// CreateUnit создаёт новый неактивный юнит без зонда
	CreateUnit() UnitHandle
	SetActive(h UnitHandle, active bool)
	SetPosition(h UnitHandle, pos vec.Vec3Float)
	// AttachProbe навешивает на юнит коллайдер-зонд, видимый для Raycast
	AttachProbe(h UnitHandle)
	DetachProbe(h UnitHandle)
	// Raycast сообщает, попадает ли луч в коллайдер-зонд на отрезке (0, maxDist]
	Raycast(origin, dir vec.Vec3Float, maxDist float64) bool
	// UnitMesh возвращает локальную геометрию юнита
	UnitMesh(h UnitHandle) LocalMesh
	// Present делает объединённую поверхность видимой и единственной поверхностью коллизий
	Present(surface *CombinedSurface)
}

// Settler — необязательное расширение подложки.
// Если подложка его реализует, конвейер переходит к следующей стадии,
// как только Settled() вернёт true, вместо ожидания фиксированной задержки.
type Settler interface {
	Settled() bool
}

// Actor — зависимый актёр (игрок/камера), которого конвейер ставит над новым ландшафтом
type Actor interface {
	DisableMotionController()
	SetTransform(pos vec.Vec3Float)
	EnableMotionController()
}
