package netcdf

import (
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

// attrs builds an ordered attribute map from alternating key/value pairs.
func attrs(kv ...any) api.AttributeMap {
	keys := make([]string, 0, len(kv)/2)
	values := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k := kv[i].(string)
		keys = append(keys, k)
		values[k] = kv[i+1]
	}
	m, err := util.NewOrderedMap(keys, values)
	if err != nil {
		// Only reachable with duplicate keys.
		panic(err)
	}
	return m
}
