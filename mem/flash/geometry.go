// Package flash describes the physical organization of the flash backend and
// how long its operations take.
package flash

import (
	"errors"
	"fmt"
)

// Geometry is the physical organization of the flash array.
type Geometry struct {
	Channels        int `mapstructure:"channels"`
	ChipsPerChannel int `mapstructure:"chips_per_channel"`
	DiesPerChip     int `mapstructure:"dies_per_chip"`
	PlanesPerDie    int `mapstructure:"planes_per_die"`
	BlocksPerPlane  int `mapstructure:"blocks_per_plane"`
	PagesPerBlock   int `mapstructure:"pages_per_block"`
	PageSize        int `mapstructure:"page_size"`
}

// DefaultGeometry returns an 8-channel, 8-chip, 4-plane array of 16 KiB pages.
func DefaultGeometry() Geometry {
	return Geometry{
		Channels:        8,
		ChipsPerChannel: 8,
		DiesPerChip:     1,
		PlanesPerDie:    4,
		BlocksPerPlane:  512,
		PagesPerBlock:   512,
		PageSize:        16384,
	}
}

// Validate checks that every dimension is positive.
func (g Geometry) Validate() error {
	dims := []struct {
		name  string
		value int
	}{
		{"channels", g.Channels},
		{"chips per channel", g.ChipsPerChannel},
		{"dies per chip", g.DiesPerChip},
		{"planes per die", g.PlanesPerDie},
		{"blocks per plane", g.BlocksPerPlane},
		{"pages per block", g.PagesPerBlock},
		{"page size", g.PageSize},
	}

	var errs []error

	for _, d := range dims {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d",
				d.name, d.value))
		}
	}

	return errors.Join(errs...)
}

// NumDies returns the number of dies in the array.
func (g Geometry) NumDies() int {
	return g.Channels * g.ChipsPerChannel * g.DiesPerChip
}

// NumPlanes returns the number of planes in the array.
func (g Geometry) NumPlanes() int {
	return g.NumDies() * g.PlanesPerDie
}

// NumBlocks returns the number of blocks in the array.
func (g Geometry) NumBlocks() int {
	return g.NumPlanes() * g.BlocksPerPlane
}

// NumPages returns the number of pages in the array.
func (g Geometry) NumPages() uint64 {
	return uint64(g.NumBlocks()) * uint64(g.PagesPerBlock)
}

// Capacity returns the physical capacity in bytes.
func (g Geometry) Capacity() uint64 {
	return g.NumPages() * uint64(g.PageSize)
}

// PhysicalAddress locates a page in the array.
type PhysicalAddress struct {
	Channel int
	Chip    int
	Die     int
	Plane   int
	Block   int
	Page    int
}

func (a PhysicalAddress) String() string {
	return fmt.Sprintf("ch%d/chip%d/die%d/pl%d/blk%d/pg%d",
		a.Channel, a.Chip, a.Die, a.Plane, a.Block, a.Page)
}

// PlaneIndex returns the linear index of the plane that holds the address.
// Planes of the same die are adjacent.
func (g Geometry) PlaneIndex(a PhysicalAddress) int {
	return g.DieIndex(a)*g.PlanesPerDie + a.Plane
}

// DieIndex returns the linear index of the die that holds the address.
func (g Geometry) DieIndex(a PhysicalAddress) int {
	return (a.Channel*g.ChipsPerChannel+a.Chip)*g.DiesPerChip + a.Die
}

// PlaneAddress returns the address of the first page of a plane.
func (g Geometry) PlaneAddress(planeIndex int) PhysicalAddress {
	a := PhysicalAddress{Plane: planeIndex % g.PlanesPerDie}
	die := planeIndex / g.PlanesPerDie
	a.Die = die % g.DiesPerChip
	chip := die / g.DiesPerChip
	a.Chip = chip % g.ChipsPerChannel
	a.Channel = chip / g.ChipsPerChannel

	return a
}

// StripePlane spreads consecutive stripe units over channels first, then
// chips, then dies, then planes. It returns the linear plane index.
func (g Geometry) StripePlane(unit uint64) int {
	s := int(unit % uint64(g.NumPlanes()))

	a := PhysicalAddress{}
	a.Channel = s % g.Channels
	s /= g.Channels
	a.Chip = s % g.ChipsPerChannel
	s /= g.ChipsPerChannel
	a.Die = s % g.DiesPerChip
	s /= g.DiesPerChip
	a.Plane = s

	return g.PlaneIndex(a)
}
