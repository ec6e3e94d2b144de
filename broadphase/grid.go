package broadphase

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// maxCellsPerAxis bounds the cells a proxy is inserted in; larger proxies (planes, terrain)
// are kept in a separate list tested by every query.
const maxCellsPerAxis = 16

// CellKey is the coordinate of a cell in 3D space
type CellKey struct {
	X, Y, Z int
}

// Cell holds the proxies touching the cells hashed to it
type Cell struct {
	proxies []int
}

type gridProxy struct {
	aabb     actor.AABB
	payload  int
	alive    bool
	oversize bool
}

// SpatialGrid is a uniform hashed grid. Several cells may share a bucket, queries filter
// the candidates with their fat AABB.
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int

	proxies  []gridProxy
	free     []int
	oversize []int

	margin                 float64
	displacementMultiplier float64

	// query deduplication
	stamps []uint32
	stamp  uint32
}

// NewSpatialGrid creates a grid of numCells buckets, rounded up to a power of two
func NewSpatialGrid(cellSize float64, numCells int, margin float64, displacementMultiplier float64) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].proxies = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize:               cellSize,
		cells:                  cells,
		cellMask:               numCells - 1,
		margin:                 margin,
		displacementMultiplier: displacementMultiplier,
	}
}

// nextPowerOfTwo rounds n up to the next power of two
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

func (sg *SpatialGrid) AddObject(aabb actor.AABB, payload int) int {
	var id int
	if n := len(sg.free); n > 0 {
		id = sg.free[n-1]
		sg.free = sg.free[:n-1]
	} else {
		id = len(sg.proxies)
		sg.proxies = append(sg.proxies, gridProxy{})
		sg.stamps = append(sg.stamps, 0)
	}

	sg.proxies[id] = gridProxy{aabb: aabb.Fatten(sg.margin), payload: payload, alive: true}
	sg.insert(id)

	return id
}

func (sg *SpatialGrid) RemoveObject(proxyID int) {
	sg.remove(proxyID)
	sg.proxies[proxyID] = gridProxy{}
	sg.free = append(sg.free, proxyID)
}

func (sg *SpatialGrid) UpdateObject(proxyID int, aabb actor.AABB, displacement mgl64.Vec3, forceReinsert bool) bool {
	if !forceReinsert && sg.proxies[proxyID].aabb.Contains(aabb) {
		return false
	}

	sg.remove(proxyID)
	sg.proxies[proxyID].aabb = fatten(aabb, sg.margin, displacement, sg.displacementMultiplier)
	sg.insert(proxyID)

	return true
}

func (sg *SpatialGrid) FatAABB(proxyID int) actor.AABB {
	return sg.proxies[proxyID].aabb
}

func (sg *SpatialGrid) Payload(proxyID int) int {
	return sg.proxies[proxyID].payload
}

func (sg *SpatialGrid) Query(aabb actor.AABB, callback QueryCallback) {
	sg.nextStamp()

	for _, id := range sg.oversize {
		sg.stamps[id] = sg.stamp
		if sg.proxies[id].aabb.Overlaps(aabb) && !callback(id) {
			return
		}
	}

	minCell, maxCell, ok := sg.cellRange(aabb)
	if !ok {
		// the query itself is oversized, test every proxy
		for id := range sg.proxies {
			if sg.proxies[id].alive && sg.stamps[id] != sg.stamp && sg.proxies[id].aabb.Overlaps(aabb) && !callback(id) {
				return
			}
		}
		return
	}

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})

				for _, id := range sg.cells[cellIdx].proxies {
					if sg.stamps[id] == sg.stamp {
						continue
					}
					sg.stamps[id] = sg.stamp

					if sg.proxies[id].aabb.Overlaps(aabb) && !callback(id) {
						return
					}
				}
			}
		}
	}
}

// Raycast tests every live proxy, sorted traversal is left to the tree
func (sg *SpatialGrid) Raycast(ray actor.Ray, callback RaycastCallback) {
	maxFraction := ray.MaxFraction

	for id := range sg.proxies {
		if !sg.proxies[id].alive {
			continue
		}
		if _, hit := sg.proxies[id].aabb.RayIntersect(ray.Point1, ray.Point2, maxFraction); !hit {
			continue
		}

		value := callback(actor.Ray{Point1: ray.Point1, Point2: ray.Point2, MaxFraction: maxFraction}, id)
		if value == 0 {
			return
		}
		if value > 0 {
			maxFraction = value
		}
	}
}

// insert adds a proxy in all the cells it occupies
func (sg *SpatialGrid) insert(id int) {
	minCell, maxCell, ok := sg.cellRange(sg.proxies[id].aabb)
	if !ok {
		sg.proxies[id].oversize = true
		sg.oversize = append(sg.oversize, id)
		return
	}

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})
				proxies := sg.cells[cellIdx].proxies
				// neighbouring cells may share a bucket
				if n := len(proxies); n > 0 && proxies[n-1] == id {
					continue
				}
				sg.cells[cellIdx].proxies = append(proxies, id)
			}
		}
	}
}

func (sg *SpatialGrid) remove(id int) {
	if sg.proxies[id].oversize {
		for i, other := range sg.oversize {
			if other == id {
				sg.oversize = append(sg.oversize[:i], sg.oversize[i+1:]...)
				break
			}
		}
		sg.proxies[id].oversize = false
		return
	}

	minCell, maxCell, _ := sg.cellRange(sg.proxies[id].aabb)
	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cell := &sg.cells[sg.hashCell(CellKey{x, y, z})]
				for i, other := range cell.proxies {
					if other == id {
						cell.proxies = append(cell.proxies[:i], cell.proxies[i+1:]...)
						break
					}
				}
			}
		}
	}
}

func (sg *SpatialGrid) nextStamp() {
	sg.stamp++
	if sg.stamp == 0 {
		for i := range sg.stamps {
			sg.stamps[i] = 0
		}
		sg.stamp = 1
	}
}

// cellRange returns the cells covered by aabb, or false when it spans too many cells
func (sg *SpatialGrid) cellRange(aabb actor.AABB) (CellKey, CellKey, bool) {
	extent := aabb.Max.Sub(aabb.Min)
	for i := 0; i < 3; i++ {
		if extent[i]/sg.cellSize > maxCellsPerAxis {
			return CellKey{}, CellKey{}, false
		}
	}

	return sg.worldToCell(aabb.Min), sg.worldToCell(aabb.Max), true
}

// worldToCell converts a world position to cell coordinates
func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

// hashCell maps a cell to a bucket index
func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
