package hierarchy

import (
	"strconv"

	"voxellands.ai/internal/land"
)

func itoa(id land.ID) string { return strconv.FormatInt(id, 10) }

func ids(cs []*land.Claim) []land.ID {
	out := make([]land.ID, len(cs))
	for i, c := range cs {
		out[i] = c.ID()
	}
	return out
}
