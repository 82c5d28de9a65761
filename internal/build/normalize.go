package build

// normalizeResult merges the compiler's raw and formatted errors into one list.
// Equal lengths are paired by index; otherwise the raw list is used as is. When
// only formatted messages exist they are kept so no failure is dropped.
func normalizeResult(service string, cr CompileResult) UnitResult {
	res := UnitResult{
		Service:  service,
		Warnings: append([]string(nil), cr.Warnings...),
	}

	switch {
	case len(cr.Errors) > 0 && len(cr.Errors) == len(cr.FormattedErrors):
		for i, raw := range cr.Errors {
			res.Errors = append(res.Errors, Diagnostic{File: fileOrMarker(raw.File), Message: cr.FormattedErrors[i]})
		}
	case len(cr.Errors) > 0:
		for _, raw := range cr.Errors {
			res.Errors = append(res.Errors, Diagnostic{File: fileOrMarker(raw.File), Message: raw.Message})
		}
	default:
		for _, msg := range cr.FormattedErrors {
			res.Errors = append(res.Errors, Diagnostic{File: NoDetail, Message: msg})
		}
	}
	res.HasErrors = len(res.Errors) > 0
	return res
}

func fileOrMarker(file string) string {
	if file == "" {
		return NoDetail
	}
	return file
}
