package core

// contactRow builds a data row carrying every required column. Entries in
// fields override the defaults; an empty string leaves the cell Missing.
func contactRow(index int, fields map[string]string) Row {
	defaults := map[string]string{
		ColFirstName:      "Amy",
		ColLastName:       "Pond",
		ColPhone:          "",
		ColLocation:       "Leeds",
		ColEngagementDate: "2024-03-01",
		ColVolunteerURL:   "https://volunteer.example.org/amy",
		ColMobile:         "07946220153",
		ColWorkPhone:      "",
	}
	for k, v := range fields {
		defaults[k] = v
	}

	values := make(map[string]Cell, len(defaults))
	for k, v := range defaults {
		if v == "" {
			values[k] = Missing
			continue
		}
		values[k] = Text(v)
	}
	return Row{Index: index, Values: values}
}

func contactBatch(rows ...Row) Batch {
	return Batch{
		Columns: append([]string(nil), RequiredColumns...),
		Rows:    rows,
	}
}
