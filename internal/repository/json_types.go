package repository

import "gorm.io/datatypes"

func datatypesSlice(v []string) datatypes.JSONSlice[string] {
	if v == nil {
		v = []string{}
	}
	return datatypes.NewJSONSlice(v)
}

func datatypesMap(v map[string]int) datatypes.JSONType[map[string]int] {
	if v == nil {
		v = map[string]int{}
	}
	return datatypes.NewJSONType(v)
}
