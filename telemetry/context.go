package telemetry

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/baggage"
)

// Baggage holds request-scoped telemetry labels that flow through context
type Baggage map[string]string

// Baggage limits, following W3C baggage specification recommendations.
// Unbounded baggage costs memory on every request and bloats every
// propagated header, so items beyond these limits are dropped.
const (
	// MaxBaggageItems is the maximum number of key-value pairs allowed
	MaxBaggageItems = 64

	// MaxBaggageKeyLength is the maximum bytes for a single key
	MaxBaggageKeyLength = 128

	// MaxBaggageValueLength is the maximum bytes for a single value
	MaxBaggageValueLength = 512

	// MaxBaggageTotalSize is the maximum total size (8KB) for all baggage
	MaxBaggageTotalSize = 8192
)

// Internal counters for baggage usage; these show when limits are being
// hit in production.
var (
	baggageItemsAdded   atomic.Uint64 // Successfully added to baggage
	baggageItemsDropped atomic.Uint64 // Dropped due to limits
	baggageOverLimit    atomic.Uint64 // Contexts that hit the item limit
	baggageTotalSize    atomic.Uint64 // Current total size of baggage
)

// labelPool reuses label slices to reduce GC pressure during emission.
var labelPool = sync.Pool{
	New: func() any {
		s := make([]string, 0, 32)
		return &s
	},
}

// WithBaggage adds labels that automatically flow through all telemetry in
// this context, using OpenTelemetry baggage for standard compliance.
// Labels are key-value pairs passed as variadic strings:
//
//	ctx = telemetry.WithBaggage(ctx, "request_id", reqID, "user_id", userID)
//
// Multiple calls are additive; later values override earlier ones with the
// same key. Items beyond the limits (64 items, 128-byte keys, 512-byte
// values, 8KB total) are silently dropped and counted in GetBaggageStats.
func WithBaggage(ctx context.Context, labels ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	bag := baggage.FromContext(ctx)
	members := bag.Members()

	if len(members) >= MaxBaggageItems {
		baggageOverLimit.Add(1)
		return ctx // Return unchanged context when at limit
	}

	totalSize := 0
	for _, m := range members {
		totalSize += len(m.Key()) + len(m.Value())
	}

	var newMembers []baggage.Member
	for i := 0; i < len(labels)-1; i += 2 {
		key := labels[i]
		value := labels[i+1]

		if key == "" {
			continue
		}
		if len(key) > MaxBaggageKeyLength {
			key = key[:MaxBaggageKeyLength]
		}
		if len(value) > MaxBaggageValueLength {
			value = value[:MaxBaggageValueLength]
		}

		newItemSize := len(key) + len(value)
		if totalSize+newItemSize > MaxBaggageTotalSize {
			baggageItemsDropped.Add(1)
			continue
		}

		member, err := baggage.NewMember(key, value)
		if err != nil {
			// Invalid key/value, skip
			continue
		}

		newMembers = append(newMembers, member)
		totalSize += newItemSize
		baggageItemsAdded.Add(1)
	}

	newBag := bag
	for _, member := range newMembers {
		var err error
		newBag, err = newBag.SetMember(member)
		if err != nil {
			continue
		}
	}

	if totalSize >= 0 {
		baggageTotalSize.Store(uint64(totalSize))
	}
	return baggage.ContextWithBaggage(ctx, newBag)
}

// GetBaggage retrieves the current baggage from context as a map.
// Returns nil if no baggage is set.
func GetBaggage(ctx context.Context) Baggage {
	if ctx == nil {
		return nil
	}

	bag := baggage.FromContext(ctx)
	members := bag.Members()
	if len(members) == 0 {
		return nil
	}

	result := make(Baggage, len(members))
	for _, m := range members {
		result[m.Key()] = m.Value()
	}

	return result
}

// appendBaggageToLabels merges baggage into a label slice with
// deterministic ordering (sorted keys). Baggage wins over explicit labels
// with the same key. The result comes from labelPool; callers return it
// with returnLabelSlice.
func appendBaggageToLabels(ctx context.Context, labels []string) []string {
	if ctx == nil {
		return labels
	}

	bag := baggage.FromContext(ctx)
	members := bag.Members()
	if len(members) == 0 {
		return labels
	}

	resultPtr := labelPool.Get().(*[]string)
	result := *resultPtr
	result = result[:0] // Reset length but keep capacity

	labelMap := make(map[string]string, len(labels)/2+len(members))
	for i := 0; i < len(labels)-1; i += 2 {
		labelMap[labels[i]] = labels[i+1]
	}
	for _, m := range members {
		labelMap[m.Key()] = m.Value()
	}

	keys := make([]string, 0, len(labelMap))
	for k := range labelMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		result = append(result, k, labelMap[k])
	}

	return result
}

// returnLabelSlice returns a label slice to the pool for reuse
func returnLabelSlice(labels []string) {
	if cap(labels) <= 512 { // Don't pool huge slices
		labels = labels[:0] // Reset length to avoid keeping references
		labelPool.Put(&labels)
	}
}

// BaggageStats reports internal metrics about baggage usage
type BaggageStats struct {
	ItemsAdded   uint64 `json:"items_added"`
	ItemsDropped uint64 `json:"items_dropped"`
	OverLimit    uint64 `json:"over_limit"`
	CurrentSize  uint64 `json:"current_size"`
}

// GetBaggageStats returns statistics about baggage usage
func GetBaggageStats() BaggageStats {
	return BaggageStats{
		ItemsAdded:   baggageItemsAdded.Load(),
		ItemsDropped: baggageItemsDropped.Load(),
		OverLimit:    baggageOverLimit.Load(),
		CurrentSize:  baggageTotalSize.Load(),
	}
}

// ResetBaggageStats resets baggage statistics (useful for testing)
func ResetBaggageStats() {
	baggageItemsAdded.Store(0)
	baggageItemsDropped.Store(0)
	baggageOverLimit.Store(0)
	baggageTotalSize.Store(0)
}
