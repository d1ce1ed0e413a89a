package store

// --------------------------------------------------------------------------
// Default-value helpers
// --------------------------------------------------------------------------

// The Get* helpers return def when the key is absent. Errors are passed through
// together with def.

func GetBool(s IStore, key string, def bool) (bool, error) {
	return orDefault(s.TryGetBool(key))(def)
}

func GetInt(s IStore, key string, def int32) (int32, error) {
	return orDefault(s.TryGetInt(key))(def)
}

func GetLong(s IStore, key string, def int64) (int64, error) {
	return orDefault(s.TryGetLong(key))(def)
}

func GetFloat(s IStore, key string, def float32) (float32, error) {
	return orDefault(s.TryGetFloat(key))(def)
}

func GetDouble(s IStore, key string, def float64) (float64, error) {
	return orDefault(s.TryGetDouble(key))(def)
}

func GetString(s IStore, key string, def string) (string, error) {
	return orDefault(s.TryGetString(key))(def)
}

func GetBytes(s IStore, key string, def []byte) ([]byte, error) {
	return orDefault(s.TryGetBytes(key))(def)
}

func orDefault[T any](value T, loaded bool, err error) func(def T) (T, error) {
	return func(def T) (T, error) {
		if err != nil || !loaded {
			return def, err
		}
		return value, nil
	}
}
