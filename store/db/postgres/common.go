package postgres

import (
	"fmt"
	"strings"

	"github.com/hrygo/recall/store"
)

func placeholder(n int) string {
	return "$" + fmt.Sprint(n)
}

func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

func sourceStrings(sources []store.ContentSource) []string {
	list := make([]string, 0, len(sources))
	for _, s := range sources {
		list = append(list, string(s))
	}
	return list
}
