package optimizer

import (
	"fmt"
	"sort"

	"github.com/stitts-dev/dfs-lineup/internal/models"
)

// RosterSlot represents a position slot in a lineup
type RosterSlot struct {
	Name     string            // e.g. "RB", "FLEX"
	Allowed  []models.Position // positions that may fill it
	Priority int               // fill order, 1 first
}

// RosterSlots lays out the slots of req in display order: core positions,
// then FLEX, with DST last. Core slots fill before FLEX.
func RosterSlots(req models.LineupRequirement) []RosterSlot {
	var core, tail []RosterSlot
	priority := 1
	for _, pos := range req.SortedPositions() {
		for i := 0; i < req.Positions[pos]; i++ {
			slot := RosterSlot{Name: string(pos), Allowed: []models.Position{pos}, Priority: priority}
			priority++
			if pos == models.PositionDST {
				tail = append(tail, slot)
			} else {
				core = append(core, slot)
			}
		}
	}

	slots := core
	for i := 0; i < req.FlexCount; i++ {
		slots = append(slots, RosterSlot{
			Name:     string(models.PositionFlex),
			Allowed:  req.FlexPositions,
			Priority: 1000 + i,
		})
	}
	return append(slots, tail...)
}

// CanFill checks if a player can fill a specific slot
func (s RosterSlot) CanFill(p models.PlayerRecord) bool {
	for _, pos := range s.Allowed {
		if p.Position == pos {
			return true
		}
	}
	return false
}

// AssignSlots places each lineup player in a slot. Players are considered
// best projection first (name breaks ties) so core slots take the strongest
// players and the leftover flex-eligible player lands in FLEX.
func AssignSlots(l *models.Lineup, req models.LineupRequirement) error {
	slots := RosterSlots(req)
	if len(l.Players) != len(slots) {
		return fmt.Errorf("lineup has %d players for %d slots", len(l.Players), len(slots))
	}

	players := make([]models.PlayerRecord, len(l.Players))
	copy(players, l.Players)
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].ProjectedPoints != players[j].ProjectedPoints {
			return players[i].ProjectedPoints > players[j].ProjectedPoints
		}
		return players[i].Name < players[j].Name
	})

	order := make([]int, len(slots))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return slots[order[a]].Priority < slots[order[b]].Priority })

	assigned := make([]models.LineupSlot, len(slots))
	used := make([]bool, len(players))
	for _, si := range order {
		slot := slots[si]
		filled := false
		for pi, p := range players {
			if used[pi] || !slot.CanFill(p) {
				continue
			}
			assigned[si] = models.LineupSlot{Slot: slot.Name, Player: p}
			used[pi] = true
			filled = true
			break
		}
		if !filled {
			return fmt.Errorf("cannot fill slot %s - no eligible players left", slot.Name)
		}
	}

	l.Slots = assigned
	return nil
}
