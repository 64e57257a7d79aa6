package model

// CloneSchema returns a copy of s whose collections and config maps can be
// changed without affecting s. Composite config values are shared.
func CloneSchema(s SchemaDocument) SchemaDocument {
	out := s
	if s.DataSources != nil {
		out.DataSources = make([]DataSourceDescriptor, len(s.DataSources))
		copy(out.DataSources, s.DataSources)
	}
	if s.Properties != nil {
		out.Properties = make([]PropertyDescriptor, len(s.Properties))
		for i, p := range s.Properties {
			out.Properties[i] = p
			if p.Config != nil {
				cfg := make(map[string]any, len(p.Config))
				for k, v := range p.Config {
					cfg[k] = v
				}
				out.Properties[i].Config = cfg
			}
		}
	}
	return out
}

// CloneRow returns a copy of r with its own property map and values.
func CloneRow(r Row) Row {
	out := r
	if r.Properties != nil {
		out.Properties = make(map[string]*string, len(r.Properties))
		for k, v := range r.Properties {
			if v != nil {
				out.Properties[k] = Text(*v)
			} else {
				out.Properties[k] = nil
			}
		}
	}
	return out
}

// CloneRows copies every row with CloneRow.
func CloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = CloneRow(r)
	}
	return out
}
