package odbcscan

import (
	"fmt"
	"sort"
	"strings"
)

// Quirks captures how a driver family deviates from the ODBC specification.
// A Quirks value is resolved once per connection/statement and never
// mutated afterwards.
type Quirks struct {
	// VarLenDataSinglePart: after a truncated first SQLGetData the driver
	// returns the whole remainder in exactly one further call, regardless of
	// the reported length.
	VarLenDataSinglePart bool

	// DecimalColumnsAsChars fetches DECIMAL/NUMERIC columns as text.
	DecimalColumnsAsChars bool

	// DecimalColumnsPrecisionThroughARD writes precision/scale into the
	// application row descriptor before fetching SQL_C_NUMERIC.
	DecimalColumnsPrecisionThroughARD bool

	// DecimalParamsAsChars binds decimal parameters as text.
	DecimalParamsAsChars bool

	// ResetStmtBeforeExecute closes the cursor and unbinds parameters before
	// each execution.
	ResetStmtBeforeExecute bool

	// TimestampMaxFractionPrecision is the number of fractional-second digits
	// the driver accepts in bound timestamps.
	TimestampMaxFractionPrecision int

	// TimeParamsAsSSTime2 binds TIME parameters as SQL_SS_TIME2.
	TimeParamsAsSSTime2 bool

	// TimeColumnsAsSSTime2 fetches SQL_SS_TIME2 columns through the SQL Server struct.
	TimeColumnsAsSSTime2 bool

	// VarLenParamsLongThresholdBytes switches text/binary parameters to the
	// LONG SQL types once their transport length exceeds it. Zero disables.
	VarLenParamsLongThresholdBytes int

	// TimestampNSTypeName is the vendor type name of its extended precision
	// timestamp (e.g. "datetime2").
	TimestampNSTypeName string

	// TimestampNS maps columns named TimestampNSTypeName to nanosecond
	// timestamps. It is never enabled by a vendor entry, only by the caller.
	TimestampNS bool
}

// DefaultQuirks returns the standard-compliant quirk set used for unknown drivers.
func DefaultQuirks() Quirks {
	return Quirks{
		TimestampMaxFractionPrecision: 9,
	}
}

// String renders the non-default fields, for logs.
func (q Quirks) String() string {
	var parts []string
	flag := func(name string, on bool) {
		if on {
			parts = append(parts, name)
		}
	}
	flag("var_len_data_single_part", q.VarLenDataSinglePart)
	flag("decimal_columns_as_chars", q.DecimalColumnsAsChars)
	flag("decimal_columns_precision_through_ard", q.DecimalColumnsPrecisionThroughARD)
	flag("decimal_params_as_chars", q.DecimalParamsAsChars)
	flag("reset_stmt_before_execute", q.ResetStmtBeforeExecute)
	flag("time_params_as_ss_time2", q.TimeParamsAsSSTime2)
	flag("time_columns_as_ss_time2", q.TimeColumnsAsSSTime2)
	flag("timestamp_ns", q.TimestampNS)
	if q.TimestampMaxFractionPrecision != 9 {
		parts = append(parts, fmt.Sprintf("timestamp_max_fraction_precision=%d", q.TimestampMaxFractionPrecision))
	}
	if q.VarLenParamsLongThresholdBytes > 0 {
		parts = append(parts, fmt.Sprintf("var_len_params_long_threshold_bytes=%d", q.VarLenParamsLongThresholdBytes))
	}
	if q.TimestampNSTypeName != "" {
		parts = append(parts, "timestamp_ns_type_name="+q.TimestampNSTypeName)
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// QuirkOverrides carries caller supplied flags. A nil field keeps the vendor
// default, a non-nil field wins.
type QuirkOverrides struct {
	VarLenDataSinglePart              *bool
	DecimalColumnsAsChars             *bool
	DecimalColumnsPrecisionThroughARD *bool
	DecimalParamsAsChars              *bool
	ResetStmtBeforeExecute            *bool
	TimestampMaxFractionPrecision     *int
	TimeParamsAsSSTime2               *bool
	TimeColumnsAsSSTime2              *bool
	VarLenParamsLongThresholdBytes    *int
	TimestampNSTypeName               *string
	TimestampNS                       *bool
}

// Bool returns a pointer to b, for filling QuirkOverrides.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i, for filling QuirkOverrides.
func Int(i int) *int { return &i }

// String returns a pointer to s, for filling QuirkOverrides.
func String(s string) *string { return &s }

// Merge layers o on top of other, o winning field by field.
func (o *QuirkOverrides) Merge(other *QuirkOverrides) *QuirkOverrides {
	if o == nil {
		return other
	}
	if other == nil {
		return o
	}
	out := *other
	pick(&out.VarLenDataSinglePart, o.VarLenDataSinglePart)
	pick(&out.DecimalColumnsAsChars, o.DecimalColumnsAsChars)
	pick(&out.DecimalColumnsPrecisionThroughARD, o.DecimalColumnsPrecisionThroughARD)
	pick(&out.DecimalParamsAsChars, o.DecimalParamsAsChars)
	pick(&out.ResetStmtBeforeExecute, o.ResetStmtBeforeExecute)
	pick(&out.TimestampMaxFractionPrecision, o.TimestampMaxFractionPrecision)
	pick(&out.TimeParamsAsSSTime2, o.TimeParamsAsSSTime2)
	pick(&out.TimeColumnsAsSSTime2, o.TimeColumnsAsSSTime2)
	pick(&out.VarLenParamsLongThresholdBytes, o.VarLenParamsLongThresholdBytes)
	pick(&out.TimestampNSTypeName, o.TimestampNSTypeName)
	pick(&out.TimestampNS, o.TimestampNS)
	return &out
}

func pick[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func apply[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// vendorQuirks maps the SQL_DBMS_NAME reported by a driver to its quirk set.
// Keys ending in "/" are family prefixes.
var vendorQuirks = map[string]Quirks{
	"Microsoft SQL Server": {
		TimestampMaxFractionPrecision:  7,
		TimeParamsAsSSTime2:            true,
		TimeColumnsAsSSTime2:           true,
		VarLenParamsLongThresholdBytes: 8000,
		TimestampNSTypeName:            "datetime2",
	},
	"Oracle": {
		DecimalColumnsPrecisionThroughARD: true,
		DecimalParamsAsChars:              true,
		TimestampMaxFractionPrecision:     9,
		VarLenParamsLongThresholdBytes:    4000,
	},
	"MySQL": {
		VarLenDataSinglePart:          true,
		DecimalColumnsAsChars:         true,
		TimestampMaxFractionPrecision: 6,
	},
	"MariaDB": {
		VarLenDataSinglePart:          true,
		DecimalColumnsAsChars:         true,
		DecimalParamsAsChars:          true,
		TimestampMaxFractionPrecision: 6,
	},
	"PostgreSQL": {
		DecimalColumnsAsChars:         true,
		DecimalParamsAsChars:          true,
		ResetStmtBeforeExecute:        true,
		TimestampMaxFractionPrecision: 6,
	},
	"DB2/": {
		DecimalColumnsPrecisionThroughARD: true,
		TimestampMaxFractionPrecision:     9,
	},
	"Snowflake": {
		DecimalColumnsAsChars:         true,
		ResetStmtBeforeExecute:        true,
		TimestampMaxFractionPrecision: 9,
		TimestampNSTypeName:           "TIMESTAMP_NTZ",
	},
	"ClickHouse": {
		VarLenDataSinglePart:          true,
		DecimalColumnsAsChars:         true,
		DecimalParamsAsChars:          true,
		TimestampMaxFractionPrecision: 9,
	},
	"DuckDB": {
		TimestampMaxFractionPrecision: 9,
		TimestampNSTypeName:           "TIMESTAMP_NS",
	},
	"SQLite": {
		DecimalColumnsAsChars:         true,
		DecimalParamsAsChars:          true,
		TimestampMaxFractionPrecision: 3,
	},
	"Firebird": {
		ResetStmtBeforeExecute:        true,
		TimestampMaxFractionPrecision: 4,
	},
	"Spark SQL": {
		DecimalColumnsAsChars:         true,
		TimestampMaxFractionPrecision: 6,
	},
}

// vendorPrefixes holds the family keys of vendorQuirks, longest first.
var vendorPrefixes = func() []string {
	var out []string
	for k := range vendorQuirks {
		if strings.HasSuffix(k, "/") {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}()

// lookupVendor returns the table entry for dbmsName, trying an exact match
// before family prefixes.
func lookupVendor(dbmsName string) (Quirks, bool) {
	if q, ok := vendorQuirks[dbmsName]; ok {
		return q, true
	}
	for _, prefix := range vendorPrefixes {
		if strings.HasPrefix(dbmsName, prefix) {
			return vendorQuirks[prefix], true
		}
	}
	return Quirks{}, false
}

// ResolveQuirks returns the quirk set for the driver reporting dbmsName with
// overrides applied on top. Unknown vendors get DefaultQuirks. The function
// is pure: identical inputs always give identical output.
func ResolveQuirks(dbmsName string, overrides *QuirkOverrides) Quirks {
	q, ok := lookupVendor(strings.TrimSpace(dbmsName))
	if !ok {
		q = DefaultQuirks()
	}
	if overrides == nil {
		return q
	}
	apply(&q.VarLenDataSinglePart, overrides.VarLenDataSinglePart)
	apply(&q.DecimalColumnsAsChars, overrides.DecimalColumnsAsChars)
	apply(&q.DecimalColumnsPrecisionThroughARD, overrides.DecimalColumnsPrecisionThroughARD)
	apply(&q.DecimalParamsAsChars, overrides.DecimalParamsAsChars)
	apply(&q.ResetStmtBeforeExecute, overrides.ResetStmtBeforeExecute)
	apply(&q.TimestampMaxFractionPrecision, overrides.TimestampMaxFractionPrecision)
	apply(&q.TimeParamsAsSSTime2, overrides.TimeParamsAsSSTime2)
	apply(&q.TimeColumnsAsSSTime2, overrides.TimeColumnsAsSSTime2)
	apply(&q.VarLenParamsLongThresholdBytes, overrides.VarLenParamsLongThresholdBytes)
	apply(&q.TimestampNSTypeName, overrides.TimestampNSTypeName)
	apply(&q.TimestampNS, overrides.TimestampNS)
	if q.TimestampMaxFractionPrecision < 0 {
		q.TimestampMaxFractionPrecision = 0
	}
	if q.TimestampMaxFractionPrecision > 9 {
		q.TimestampMaxFractionPrecision = 9
	}
	return q
}

// KnownVendors lists the vendor table keys in sorted order.
func KnownVendors() []string {
	out := make([]string, 0, len(vendorQuirks))
	for k := range vendorQuirks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
