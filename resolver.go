package cartographer

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// maxFlattenWords bounds the word groupings tried when flattening.
const maxFlattenWords = 8

// applyReverseRenames copies simple MapFrom renames of forward maps onto
// their reverse maps, unless the reverse map configures the member itself.
func (c *Configuration) applyReverseRenames() {
	for _, rev := range c.order {
		fwd := rev.reverseOf
		if fwd == nil {
			continue
		}
		destInfo := c.typeCache.getTypeInfo(rev.destType)
		for _, pm := range fwd.propertyMaps {
			if pm.srcName == "" || strings.Contains(pm.srcName, ".") {
				continue
			}
			mi, ok := destInfo.membersByName[pm.srcName]
			if !ok || rev.findPropertyMap(mi.name) != nil {
				continue
			}
			rev.propertyMaps = append(rev.propertyMaps, &PropertyMap{
				destMember: mi,
				srcName:    pm.destMember.name,
				explicit:   true,
			})
		}
	}
}

// applyInheritance copies explicit member rules from base maps into the
// maps they include. Bases are completed before their derived maps.
func (c *Configuration) applyInheritance() {
	bases := make(map[*TypeMap][]*TypeMap)
	for _, tm := range c.order {
		for _, inc := range tm.includes {
			bases[inc] = append(bases[inc], tm)
		}
	}

	done := make(map[*TypeMap]bool)
	var inherit func(tm *TypeMap)
	inherit = func(tm *TypeMap) {
		if done[tm] {
			return
		}
		done[tm] = true
		for _, base := range bases[tm] {
			inherit(base)
			c.inheritRules(tm, base)
		}
	}
	for _, tm := range c.order {
		inherit(tm)
	}
}

func (c *Configuration) inheritRules(derived, base *TypeMap) {
	destInfo := c.typeCache.getTypeInfo(derived.destType)
	for _, pm := range base.propertyMaps {
		if !pm.explicit {
			continue
		}
		mi, ok := destInfo.membersByName[pm.destMember.name]
		if !ok || derived.findPropertyMap(mi.name) != nil {
			continue
		}
		derived.propertyMaps = append(derived.propertyMaps, &PropertyMap{
			destMember:   mi,
			srcName:      pm.srcName,
			resolver:     pm.resolver,
			resolverType: pm.resolverType,
			ignore:       pm.ignore,
			preCondition: pm.preCondition,
			condition:    pm.condition,
			converter:    pm.converter,
			explicit:     true,
			inherited:    true,
			err:          pm.err,
		})
	}
}

// resolveMembers binds every destination member of tm to a source, or
// leaves it unmapped. The rules end up in destination declaration order.
func (c *Configuration) resolveMembers(tm *TypeMap) {
	for _, pm := range tm.propertyMaps {
		if pm.err != nil && !pm.inherited {
			c.fail(errors.Wrapf(pm.err, "%v", tm))
		}
	}
	if tm.converter != nil || tm.custom != nil {
		return
	}

	srcInfo := c.typeCache.getTypeInfo(tm.srcType)
	destInfo := c.typeCache.getTypeInfo(tm.destType)
	ordered := make([]*PropertyMap, 0, len(destInfo.members))

	for _, dm := range destInfo.members {
		pm := tm.findPropertyMap(dm.name)
		if pm == nil {
			pm = &PropertyMap{destMember: dm}
		}
		ordered = append(ordered, pm)

		if pm.ignore || pm.resolver != nil {
			continue
		}
		if pm.srcName != "" {
			pm.srcMember = c.typeCache.resolvePath(tm.srcType, strings.Split(pm.srcName, "."))
			if pm.srcMember == nil {
				c.fail(errors.Errorf("%v: unknown source member %q for %s", tm, pm.srcName, dm.name))
			}
			continue
		}

		if c.metadata != nil {
			marker := c.metadata(dm.field)
			if marker.Ignore {
				pm.ignore = true
				continue
			}
			if marker.From != "" {
				pm.srcMember = c.typeCache.resolvePath(tm.srcType, strings.Split(marker.From, "."))
				if pm.srcMember == nil {
					c.fail(errors.Errorf("%v: unknown source member %q named by metadata of %s", tm, marker.From, dm.name))
				}
				continue
			}
		}

		pm.srcMember = c.matchMember(tm, srcInfo, dm)
		if pm.srcMember == nil {
			c.logger.WithFields(logrus.Fields{
				"source":      typeName(tm.srcType),
				"destination": typeName(tm.destType),
				"member":      dm.name,
			}).Debug("destination member has no source")
		}
	}

	tm.propertyMaps = ordered
}

// matchMember runs the convention steps after member metadata: custom
// matchers, exact name, normalized name and flattening.
func (c *Configuration) matchMember(tm *TypeMap, srcInfo *typeInfo, dm *memberInfo) *memberInfo {
	if len(c.matchers) > 0 {
		dest := dm.public()
		for _, sm := range srcInfo.members {
			src := sm.public()
			for _, match := range c.matchers {
				if match(src, dest) {
					return sm
				}
			}
		}
	}

	if sm, ok := srcInfo.membersByName[dm.name]; ok {
		return sm
	}

	key := c.destNaming.Normalize(dm.name)
	for _, sm := range srcInfo.members {
		if c.sourceNaming.Normalize(sm.name) == key {
			return sm
		}
	}

	return c.flatten(tm, dm.name)
}

// flatten binds a destination member such as CustomerName to the source
// path Customer.Name, trying fewer groups of words first.
func (c *Configuration) flatten(tm *TypeMap, name string) *memberInfo {
	words := splitPascalCase(name)
	if len(words) < 2 || len(words) > maxFlattenWords {
		return nil
	}

	var found *memberInfo
	for groups := 2; groups <= len(words); groups++ {
		splitWords(words, groups, func(path []string) bool {
			found = c.typeCache.resolvePath(tm.srcType, path)
			return found != nil
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// splitWords calls fn for every cut of words into n consecutive groups
// until fn returns true.
func splitWords(words []string, n int, fn func(path []string) bool) bool {
	if n == 1 {
		return fn([]string{strings.Join(words, "")})
	}
	for i := 1; i <= len(words)-n+1; i++ {
		head := strings.Join(words[:i], "")
		stop := splitWords(words[i:], n-1, func(rest []string) bool {
			return fn(append([]string{head}, rest...))
		})
		if stop {
			return true
		}
	}
	return false
}

// checkIncludes verifies that every included pair derives from its base.
func (c *Configuration) checkIncludes() {
	for _, tm := range c.order {
		for _, inc := range tm.includes {
			if !derivesFrom(inc.srcType, tm.srcType) {
				c.fail(errors.Errorf("%v: included source %v does not derive from %v",
					tm, typeName(inc.srcType), typeName(tm.srcType)))
			}
			if !derivesFrom(inc.destType, tm.destType) {
				c.fail(errors.Errorf("%v: included destination %v does not derive from %v",
					tm, typeName(inc.destType), typeName(tm.destType)))
			}
		}
	}
}
