// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/relabs-tech/labadmin/core"
	"github.com/relabs-tech/labadmin/core/account"
)

const entityName = "userManagement"

// setAlert sets the alert headers the web client shows as notification
func (a *API) setAlert(w http.ResponseWriter, operation core.Operation, param string) {
	w.Header().Set("X-"+a.appName+"-alert", a.appName+"."+entityName+"."+operation.Past())
	w.Header().Set("X-"+a.appName+"-params", param)
}

// setFailureAlert sets the headers the web client shows as error notification
func (a *API) setFailureAlert(w http.ResponseWriter, errorKey string) {
	w.Header().Set("X-"+a.appName+"-error", "error."+errorKey)
	w.Header().Set("X-"+a.appName+"-params", entityName)
}

// parsePageRequest reads page, size and sort from the query. The listing is paged only
// if both page and size are given.
func parsePageRequest(query url.Values) (account.PageRequest, error) {
	var pr account.PageRequest
	pageParam, sizeParam := query.Get("page"), query.Get("size")
	if (pageParam == "") != (sizeParam == "") {
		return pr, fmt.Errorf("page and size must be given together")
	}
	if pageParam != "" {
		page, err := strconv.Atoi(pageParam)
		if err != nil || page < 0 {
			return pr, fmt.Errorf("invalid page '%s'", pageParam)
		}
		size, err := strconv.Atoi(sizeParam)
		if err != nil || size < 1 {
			return pr, fmt.Errorf("invalid size '%s'", sizeParam)
		}
		pr.Page, pr.Size = page, size
		if _, ok := pr.Offset(); !ok {
			return pr, fmt.Errorf("page %d of size %d is out of range", page, size)
		}
	}

	pr.Sort = account.SortByLogin
	if sortParam := query.Get("sort"); sortParam != "" {
		property, direction, _ := strings.Cut(sortParam, ",")
		sort, ok := account.ParseSortProperty(property)
		if !ok || sort == account.SortByID {
			return pr, fmt.Errorf("cannot sort by '%s'", property)
		}
		pr.Sort = sort
		switch strings.ToLower(direction) {
		case "", "asc":
		case "desc":
			pr.Descending = true
		default:
			return pr, fmt.Errorf("invalid sort direction '%s'", direction)
		}
	}
	return pr, nil
}

// setPaginationHeaders sets the total count and, for paged listings, the navigation
// links and the page headers
func setPaginationHeaders(w http.ResponseWriter, r *http.Request, page account.Page) {
	w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
	if page.Request.Unpaged() {
		return
	}
	pageCount := page.PageCount()
	current := page.Request.Page
	w.Header().Set("Pagination-Limit", strconv.Itoa(page.Request.Size))
	w.Header().Set("Pagination-Total-Count", strconv.Itoa(page.Total))
	w.Header().Set("Pagination-Page-Count", strconv.Itoa(pageCount))
	w.Header().Set("Pagination-Current-Page", strconv.Itoa(current+1))

	link := func(p int, rel string) string {
		query := r.URL.Query()
		query.Set("page", strconv.Itoa(p))
		query.Set("size", strconv.Itoa(page.Request.Size))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, r.URL.Path, query.Encode(), rel)
	}
	var links []string
	if current+1 < pageCount {
		links = append(links, link(current+1, "next"))
	}
	if current > 0 {
		links = append(links, link(current-1, "prev"))
	}
	links = append(links, link(pageCount-1, "last"), link(0, "first"))
	w.Header().Set("Link", strings.Join(links, ","))
}
