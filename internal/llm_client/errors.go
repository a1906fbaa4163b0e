package llm_client

import "errors"

var ErrNotInitialized = errors.New("llm client not initialized")
