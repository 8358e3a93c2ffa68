package world

import (
	"fmt"
	"sort"

	"garrison.ai/internal/protocol"
	"garrison.ai/internal/sim/catalogs"
	"garrison.ai/internal/sim/garrison"
)

// Entity is a live world object spawned on a map.
type Entity struct {
	Handle  garrison.EntityHandle
	Entry   uint32
	Pos     protocol.Position
	Faction garrison.Faction
}

type mapInstance struct {
	handle   garrison.MapHandle
	entities map[garrison.EntityHandle]Entity
}

// Maps is the in-memory map registry. Shared maps use instance key 0;
// instanced maps are keyed by the owning player id. Only the realm loop
// touches it.
type Maps struct {
	cat       *catalogs.Catalogs
	instances map[garrison.MapHandle]*mapInstance
	next      garrison.EntityHandle
	entities  int
}

func NewMaps(cat *catalogs.Catalogs) *Maps {
	return &Maps{cat: cat, instances: map[garrison.MapHandle]*mapInstance{}}
}

func (m *Maps) handleFor(mapID uint32, key uint64) (garrison.MapHandle, bool) {
	def, ok := m.cat.Map(mapID)
	if !ok {
		return garrison.MapHandle{}, false
	}
	if !def.Instanced {
		key = 0
	}
	return garrison.MapHandle{MapID: mapID, InstanceKey: key}, true
}

// Create returns the instance for mapID, creating it when missing.
func (m *Maps) Create(mapID uint32, key uint64) (garrison.MapHandle, error) {
	h, ok := m.handleFor(mapID, key)
	if !ok {
		return garrison.MapHandle{}, fmt.Errorf("map %d: %w", mapID, catalogs.ErrMissingEntry)
	}
	if _, exists := m.instances[h]; !exists {
		m.instances[h] = &mapInstance{handle: h, entities: map[garrison.EntityHandle]Entity{}}
	}
	return h, nil
}

// Destroy tears down an instance together with its entities.
func (m *Maps) Destroy(h garrison.MapHandle) {
	inst, ok := m.instances[h]
	if !ok {
		return
	}
	m.entities -= len(inst.entities)
	delete(m.instances, h)
}

func (m *Maps) FindMap(mapID uint32, key uint64) (garrison.MapHandle, bool) {
	h, ok := m.handleFor(mapID, key)
	if !ok {
		return garrison.MapHandle{}, false
	}
	_, ok = m.instances[h]
	return h, ok
}

func (m *Maps) Spawn(h garrison.MapHandle, entry uint32, pos protocol.Position, faction garrison.Faction) (garrison.EntityHandle, error) {
	inst, ok := m.instances[h]
	if !ok {
		return 0, fmt.Errorf("spawn %d: map %d/%d not loaded", entry, h.MapID, h.InstanceKey)
	}
	if !m.cat.HasEntityTemplate(entry) {
		return 0, fmt.Errorf("spawn %d: %w", entry, garrison.ErrNoEntityTemplate)
	}
	m.next++
	inst.entities[m.next] = Entity{Handle: m.next, Entry: entry, Pos: pos, Faction: faction}
	m.entities++
	return m.next, nil
}

func (m *Maps) Despawn(h garrison.MapHandle, e garrison.EntityHandle) {
	inst, ok := m.instances[h]
	if !ok {
		return
	}
	if _, ok := inst.entities[e]; ok {
		delete(inst.entities, e)
		m.entities--
	}
}

// Entities lists the live entities of an instance by handle.
func (m *Maps) Entities(h garrison.MapHandle) []Entity {
	inst, ok := m.instances[h]
	if !ok {
		return nil
	}
	out := make([]Entity, 0, len(inst.entities))
	for _, e := range inst.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func (m *Maps) EntityCount() int   { return m.entities }
func (m *Maps) InstanceCount() int { return len(m.instances) }
