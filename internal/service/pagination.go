package service

// PageOptions 分页默认值
type PageOptions struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultPageOptions 默认分页配置
var DefaultPageOptions = PageOptions{DefaultPageSize: 10, MaxPageSize: 100}

func (o PageOptions) normalize(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = o.DefaultPageSize
		if size <= 0 {
			size = 10
		}
	}
	if o.MaxPageSize > 0 && size > o.MaxPageSize {
		size = o.MaxPageSize
	}
	return page, size
}
