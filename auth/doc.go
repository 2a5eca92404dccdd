// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token generation and validation.

# ID Generation

GenerateID creates random hex identifiers for entities:

	communityID, err := auth.GenerateID(16)

# Manager Keys

Community managers authenticate with an HMAC-derived key. The key is
deterministic from (community id, salt), so it never needs storing:

	key := auth.GenerateManagerKey(communityID, cfg.ManagerKeySalt)
	err := auth.ValidateManagerKey(communityID, key, cfg.ManagerKeySalt)

Validation uses constant-time comparison.

# Member Tokens

Members receive a random 192-bit token when joining a community. The
token identifies them for casting ballots and managing follow edges:

	token, err := auth.GenerateMemberToken()
*/
package auth
