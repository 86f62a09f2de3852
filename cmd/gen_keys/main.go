// Command gen_keys prints a freshly generated identity's private and public
// key material, the same one-shot key-minting role as the teacher's
// cmd/gen_keys/main.go (which dumped a raw Ed25519 keypair), repointed at
// identity.Create's combined X25519+Ed25519 identity (spec.md §4.2).
package main

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/torlando-tech/reticulum-kt-sub003/identity"
)

func main() {
	id, err := identity.Create()
	if err != nil {
		log.Fatalf("failed to generate identity: %v", err)
	}

	priv, err := id.PrivateBytes()
	if err != nil {
		log.Fatalf("failed to encode private key: %v", err)
	}

	fmt.Printf("PRIVATE: %s\n", hex.EncodeToString(priv))
	fmt.Printf("PUBLIC:  %s\n", hex.EncodeToString(id.PublicBytes()))
	fmt.Printf("HASH:    %s\n", hex.EncodeToString(id.Hash()[:]))
}
