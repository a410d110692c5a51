package runtime

import (
	"reflect"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// typeMembers is the reflected member table of one concrete type, built
// once and shared by every expression in the process.
type typeMembers struct {
	typ     reflect.Type
	fields  map[string][]int            // exported field name -> index path
	methods map[string][]reflect.Method // name -> overload set (value + pointer receiver)
}

var memberCache = cmap.New[*typeMembers]()

// membersOf returns the member table for t, computing and caching it on
// first use. The cache key is the type's printed name; the stored type is
// checked on every hit so a rare name collision only costs a rebuild.
func membersOf(t reflect.Type) *typeMembers {
	key := t.String()
	if m, ok := memberCache.Get(key); ok && m.typ == t {
		return m
	}
	m := buildMembers(t)
	memberCache.Set(key, m)
	return m
}

func buildMembers(t reflect.Type) *typeMembers {
	m := &typeMembers{
		typ:     t,
		fields:  map[string][]int{},
		methods: map[string][]reflect.Method{},
	}
	st := t
	if st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	if st.Kind() == reflect.Struct {
		collectFields(st, nil, m.fields)
	}
	for i := 0; i < t.NumMethod(); i++ {
		meth := t.Method(i)
		if meth.PkgPath != "" {
			continue
		}
		m.methods[meth.Name] = append(m.methods[meth.Name], meth)
	}
	// Pointer-receiver methods are visible on the pointer type only.
	if t.Kind() != reflect.Ptr {
		pt := reflect.PtrTo(t)
		for i := 0; i < pt.NumMethod(); i++ {
			meth := pt.Method(i)
			if meth.PkgPath != "" {
				continue
			}
			if _, ok := m.methods[meth.Name]; !ok {
				m.methods[meth.Name] = append(m.methods[meth.Name], meth)
			}
		}
	}
	return m
}

func collectFields(st reflect.Type, prefix []int, out map[string][]int) {
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		index := append(append([]int{}, prefix...), i)
		if f.Anonymous {
			ft := f.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectFields(ft, index, out)
			}
			continue
		}
		if f.PkgPath != "" {
			continue
		}
		if _, ok := out[f.Name]; !ok {
			out[f.Name] = index
		}
	}
}
