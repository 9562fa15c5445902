package session

import (
	"fmt"

	"github.com/Merdeus/dndinventory/internal/model"
)

// ErrConnectionNotFound is returned for a client id with no live connection
var ErrConnectionNotFound = fmt.Errorf("%w: connection not found", model.ErrUnknownEntity)
