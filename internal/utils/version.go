package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
)

/**
 * Parse version string
 * @param {string} versionStr - Dotted version (e.g. "1.2.3"), surrounding blanks ignored
 * @returns {*version.Version} Parsed version
 */
func ParseVersion(versionStr string) (*version.Version, error) {
	return version.NewVersion(strings.TrimSpace(versionStr))
}

/**
 * VersionRange 版本范围表达式
 * @description
 * - "[a,b)" 区间写法，'['/']'包含端点，'('/')'不包含，端点可以为空
 * - 端点与单独的版本号按前缀匹配："1.2" 匹配 1.2、1.2.0、1.2.7
 * - "(a" 表示严格大于a，"b)" 表示严格小于b
 */
type VersionRange struct {
	Expr        string
	constraints version.Constraints
}

/**
 * Parse a version range expression
 * @param {string} expr - "[1.0,2.0)", "(,1.5]", "[,]" or a bare version such as "1.2"
 * @returns {*VersionRange} Parsed range
 * @returns {error} Error if the expression or one of its versions is invalid
 */
func ParseVersionRange(expr string) (*VersionRange, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("invalid version range expression: should not be empty")
	}
	first, last := expr[0], expr[len(expr)-1]
	var parts []string
	if (first != '[' && first != '(') || (last != ']' && last != ')') {
		v, err := ParseVersion(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid version range expression '%s': %w", expr, err)
		}
		parts = append(parts, ">= "+v.String())
		if next, ok := nextPrefix(expr); ok {
			parts = append(parts, "< "+next)
		}
	} else {
		bounds := strings.Split(expr[1:len(expr)-1], ",")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid version range expression '%s': should include two versions separated by ','", expr)
		}
		begin, end := strings.TrimSpace(bounds[0]), strings.TrimSpace(bounds[1])
		if begin != "" {
			v, err := ParseVersion(begin)
			if err != nil {
				return nil, fmt.Errorf("invalid begin version '%s': %w", begin, err)
			}
			if first == '[' {
				parts = append(parts, ">= "+v.String())
			} else {
				parts = append(parts, "> "+v.String())
			}
		}
		if end != "" {
			v, err := ParseVersion(end)
			if err != nil {
				return nil, fmt.Errorf("invalid end version '%s': %w", end, err)
			}
			if last == ']' {
				if next, ok := nextPrefix(end); ok {
					parts = append(parts, "< "+next)
				} else {
					parts = append(parts, "<= "+v.String())
				}
			} else {
				parts = append(parts, "< "+v.String())
			}
		}
	}

	r := &VersionRange{Expr: expr}
	if len(parts) == 0 {
		return r, nil
	}
	c, err := version.NewConstraint(strings.Join(parts, ", "))
	if err != nil {
		return nil, fmt.Errorf("invalid version range expression '%s': %w", expr, err)
	}
	r.constraints = c
	return r, nil
}

// Matches reports whether v lies in the range. An open range "[,]" matches every version.
func (r *VersionRange) Matches(v *version.Version) bool {
	if r.constraints == nil {
		return true
	}
	return r.constraints.Check(v)
}

// nextPrefix increments the last written segment of a plain dotted version: "1.2" -> "1.3".
func nextPrefix(raw string) (string, bool) {
	segs := strings.Split(strings.TrimSpace(raw), ".")
	nums := make([]int, len(segs))
	for i, s := range segs {
		n, err := strconv.Atoi(s)
		if err != nil {
			return "", false
		}
		nums[i] = n
	}
	nums[len(nums)-1]++
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = strconv.Itoa(n)
	}
	return strings.Join(out, "."), true
}
