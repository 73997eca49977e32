package directorysync

import (
	"cmp"
	"slices"

	"github.com/ogurasousui/spendsync/internal/core/directory"
)

// sortByDepth はパスの階層が浅い順に並べ替えたコピーを返します。同じ階層では入力順を保ちます。
func sortByDepth(units []directory.OrgUnit) []directory.OrgUnit {
	ordered := slices.Clone(units)
	slices.SortStableFunc(ordered, func(a, b directory.OrgUnit) int {
		return cmp.Compare(a.Depth(), b.Depth())
	})
	return ordered
}
