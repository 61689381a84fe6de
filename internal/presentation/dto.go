package presentation

import (
	"time"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/infrastructure/sqlite"
	"github.com/zjrosen/datarep/internal/registry"
	"github.com/zjrosen/datarep/internal/representation"
)

// FormatDTO describes one element format.
type FormatDTO struct {
	Name       string  `json:"name"`
	Class      string  `json:"class"`
	Components int     `json:"components"`
	Bits       int     `json:"bits"`
	Size       int     `json:"size_bytes"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
}

// FamilyDTO lists what a family's registries currently hold.
type FamilyDTO struct {
	Family   string    `json:"family"`
	Creators []string  `json:"creators"`
	Kinds    []string  `json:"kinds"`
	Rules    []RuleDTO `json:"rules"`
}

// RuleDTO is one conversion edge. From is "<none>" for source-less rules.
type RuleDTO struct {
	Name    string `json:"name"`
	From    string `json:"from"`
	To      string `json:"to"`
	Updates bool   `json:"updates_in_place"`
}

// PathDTO is the answer to a path query.
type PathDTO struct {
	Family    string   `json:"family"`
	Available []string `json:"available"`
	Target    string   `json:"target"`
	Found     bool     `json:"found"`
	Hops      []string `json:"hops"`
}

// VolumeDTO summarises a volume's cache state.
type VolumeDTO struct {
	Location string         `json:"location,omitempty"`
	Format   string         `json:"format"`
	Dims     []int          `json:"dims"`
	Kinds    []KindStateDTO `json:"kinds"`
	Values   *ValueStatsDTO `json:"values,omitempty"`
}

// ValueStatsDTO summarises the element values of a data object.
type ValueStatsDTO struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// BlobDTO is one stored blob.
type BlobDTO struct {
	Key       string `json:"key"`
	Format    string `json:"format"`
	Dims      []int  `json:"dims"`
	Size      int    `json:"size_bytes"`
	Version   int64  `json:"version"`
	UpdatedAt string `json:"updated_at"`
}

type KindStateDTO struct {
	Kind          string `json:"kind"`
	Stale         bool   `json:"stale"`
	Authoritative bool   `json:"authoritative"`
}

// FromDescriptor converts a format descriptor to a DTO.
func FromDescriptor(d format.Descriptor) FormatDTO {
	lo, hi := d.Range()
	return FormatDTO{
		Name:       d.Name(),
		Class:      d.Class().String(),
		Components: d.Components(),
		Bits:       d.Bits(),
		Size:       d.Size(),
		Min:        lo,
		Max:        hi,
	}
}

// FromDescriptors converts every descriptor, keeping order.
func FromDescriptors(ds []format.Descriptor) []FormatDTO {
	dtos := make([]FormatDTO, len(ds))
	for i, d := range ds {
		dtos[i] = FromDescriptor(d)
	}
	return dtos
}

// FromPair snapshots a family's creators and rules.
func FromPair(pair *registry.Pair) FamilyDTO {
	dto := FamilyDTO{
		Family:   pair.Family().String(),
		Creators: kindStrings(pair.Creators.Kinds()),
		Kinds:    kindStrings(pair.Conversions.Kinds()),
		Rules:    make([]RuleDTO, 0),
	}
	for _, rule := range pair.Conversions.Rules() {
		_, updates := rule.(representation.Updater)
		dto.Rules = append(dto.Rules, RuleDTO{
			Name:    rule.Name(),
			From:    rule.Source().String(),
			To:      rule.Target().String(),
			Updates: updates,
		})
	}
	return dto
}

// FromPath converts a resolved (or unresolved) path query.
func FromPath(family representation.Family, available []representation.Kind, target representation.Kind, path representation.Path, found bool) PathDTO {
	dto := PathDTO{
		Family:    family.String(),
		Available: kindStrings(available),
		Target:    target.String(),
		Found:     found,
		Hops:      make([]string, 0, len(path)),
	}
	for _, rule := range path {
		dto.Hops = append(dto.Hops, rule.Name())
	}
	return dto
}

// KindState is the per-kind view a data object reports about its cache.
type KindState struct {
	Kind          representation.Kind
	Stale         bool
	Authoritative bool
}

// FromVolumeState builds a VolumeDTO. location is "" for unsaved volumes.
func FromVolumeState(location string, f format.Descriptor, dims []int, states []KindState) VolumeDTO {
	dto := VolumeDTO{
		Location: location,
		Format:   f.Name(),
		Dims:     dims,
		Kinds:    make([]KindStateDTO, len(states)),
	}
	for i, s := range states {
		dto.Kinds[i] = KindStateDTO{Kind: s.Kind.String(), Stale: s.Stale, Authoritative: s.Authoritative}
	}
	return dto
}

// StatsOf summarises values. Empty input yields a zero Count and zero stats.
func StatsOf(values []float64) *ValueStatsDTO {
	stats := &ValueStatsDTO{Count: len(values)}
	if len(values) == 0 {
		return stats
	}
	stats.Min, stats.Max = values[0], values[0]
	var sum float64
	for _, v := range values {
		stats.Min = min(stats.Min, v)
		stats.Max = max(stats.Max, v)
		sum += v
	}
	stats.Mean = sum / float64(len(values))
	return stats
}

// FromBlobInfos converts store listings.
func FromBlobInfos(infos []sqlite.BlobInfo) []BlobDTO {
	dtos := make([]BlobDTO, len(infos))
	for i, info := range infos {
		dtos[i] = BlobDTO{
			Key:       info.Key,
			Format:    info.Format,
			Dims:      info.Dims,
			Size:      info.Size,
			Version:   info.Version,
			UpdatedAt: info.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	return dtos
}

func kindStrings(kinds []representation.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
