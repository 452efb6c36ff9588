package odbcscan

import (
	"strings"

	"github.com/slingdata-io/odbcscan/chunk"
)

// DriverInfo is one installed driver as listed by the driver manager.
type DriverInfo struct {
	Description string
	Attributes  []string // key=value pairs
}

// DataSourceInfo is one configured data source.
type DataSourceInfo struct {
	Name        string
	Description string
}

const maxCatalogRetries = 4

// withEnv runs fn against a fresh ODBC 3 environment handle.
func withEnv(api API, fn func(env SQLHENV) error) error {
	h, ret := api.AllocHandle(SQL_HANDLE_ENV, SQL_NULL_HANDLE)
	if !IsSuccess(ret) {
		return &OpError{Op: "SQLAllocHandle(ENV)", Return: ret}
	}
	env := SQLHENV(h)
	defer api.FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(env))

	if ret := api.SetEnvAttr(env, SQL_ATTR_ODBC_VERSION, uintptr(SQL_OV_ODBC3)); !IsSuccess(ret) {
		return &OpError{Op: "SQLSetEnvAttr(ODBC_VERSION)", Return: ret, Err: NewError(api, SQL_HANDLE_ENV, SQLHANDLE(env))}
	}
	return fn(env)
}

// enumerate walks a SQLDrivers/SQLDataSources style listing. next fills the
// two buffers and reports the lengths in characters. A truncated entry
// restarts the walk with larger buffers.
func enumerate(op string, env SQLHENV, api API, first, second int,
	next func(dir SQLUSMALLINT, a, b []uint16) (SQLSMALLINT, SQLSMALLINT, SQLRETURN),
	emit func(a, b []uint16, aLen, bLen int),
) error {
	for attempt := 0; attempt < maxCatalogRetries; attempt++ {
		a, b := make([]uint16, first), make([]uint16, second)
		var entries [][2][]uint16
		truncated := false

		dir := SQL_FETCH_FIRST
		for {
			aLen, bLen, ret := next(dir, a, b)
			if ret == SQL_NO_DATA {
				break
			}
			if !IsSuccess(ret) {
				return &OpError{Op: op, Return: ret, Err: NewError(api, SQL_HANDLE_ENV, SQLHANDLE(env))}
			}
			if int(aLen) >= len(a) || int(bLen) >= len(b) {
				first = max(first, int(aLen)+1)
				second = max(second, int(bLen)+1)
				truncated = true
				break
			}
			entries = append(entries, [2][]uint16{
				append([]uint16(nil), a[:aLen]...),
				append([]uint16(nil), b[:bLen]...),
			})
			dir = SQL_FETCH_NEXT
		}
		if truncated {
			continue
		}
		for _, e := range entries {
			emit(e[0], e[1], len(e[0]), len(e[1]))
		}
		return nil
	}
	return &OpError{Op: op, Err: protocolError(KindLengthMismatch, "entries kept growing across %d attempts", maxCatalogRetries)}
}

// ListDrivers returns the drivers installed in the driver manager.
func ListDrivers(api API) ([]DriverInfo, error) {
	var out []DriverInfo
	err := withEnv(api, func(env SQLHENV) error {
		return enumerate("SQLDrivers", env, api, 256, 1024,
			func(dir SQLUSMALLINT, a, b []uint16) (SQLSMALLINT, SQLSMALLINT, SQLRETURN) {
				return api.Drivers(env, dir, a, b)
			},
			func(desc, attrs []uint16, dn, an int) {
				out = append(out, DriverInfo{
					Description: utf16nToString(desc, dn),
					Attributes:  splitAttributes(attrs[:an]),
				})
			})
	})
	return out, err
}

// ListDataSources returns the user and system data sources.
func ListDataSources(api API) ([]DataSourceInfo, error) {
	var out []DataSourceInfo
	err := withEnv(api, func(env SQLHENV) error {
		return enumerate("SQLDataSources", env, api, 256, 512,
			func(dir SQLUSMALLINT, a, b []uint16) (SQLSMALLINT, SQLSMALLINT, SQLRETURN) {
				return api.DataSources(env, dir, a, b)
			},
			func(name, desc []uint16, nn, dn int) {
				out = append(out, DataSourceInfo{
					Name:        utf16nToString(name, nn),
					Description: utf16nToString(desc, dn),
				})
			})
	})
	return out, err
}

// splitAttributes splits a NUL separated attribute list.
func splitAttributes(units []uint16) []string {
	var out []string
	start := 0
	for i := 0; i <= len(units); i++ {
		if i == len(units) || units[i] == 0 {
			if i > start {
				out = append(out, utf16ToString(units[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

// DriversChunk renders drivers as a two column VARCHAR table:
// description, attributes (joined with ';').
func DriversChunk(drivers []DriverInfo) *chunk.Chunk {
	c := chunk.NewWithCapacity([]chunk.Type{chunk.Of(chunk.TypeVarchar), chunk.Of(chunk.TypeVarchar)}, max(len(drivers), 1))
	for i, d := range drivers {
		chunk.Set(c.Vector(0), i, d.Description)
		chunk.Set(c.Vector(1), i, strings.Join(d.Attributes, ";"))
	}
	c.SetSize(len(drivers))
	return c
}

// DataSourcesChunk renders data sources as name, description.
func DataSourcesChunk(sources []DataSourceInfo) *chunk.Chunk {
	c := chunk.NewWithCapacity([]chunk.Type{chunk.Of(chunk.TypeVarchar), chunk.Of(chunk.TypeVarchar)}, max(len(sources), 1))
	for i, s := range sources {
		chunk.Set(c.Vector(0), i, s.Name)
		chunk.Set(c.Vector(1), i, s.Description)
	}
	c.SetSize(len(sources))
	return c
}
