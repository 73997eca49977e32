package directory

import "strings"

// Depth は組織単位パスの階層数を返します。"/" や空文字は 0 です。
func (u OrgUnit) Depth() int {
	depth := 0
	for _, segment := range strings.Split(u.Path, "/") {
		if segment != "" {
			depth++
		}
	}
	return depth
}
