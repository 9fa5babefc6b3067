// Package httpapp provides the HTTP server for Perch.
//
//	@title			Perch API
//	@version		1.0
//	@description	Comment service for static sites. Comments are guarded by a signed page attestation and a proof-of-work challenge.
//	@description
//	@description	## Posting a comment
//	@description
//	@description	1. `POST /api/challenge/?page=URL` with the draft returns a comment id, an attestation and problems.
//	@description	2. Solve `solutions_expect` problems so that `sha256(problem + ":" + proof)` has `difficulty_expect` leading zero bits.
//	@description	3. `POST /api/comment/?page=URL` with the draft, comment id, attestation and mints.
//	@description
//	@description	Browsers can load `/assets/embed.js`, which runs the whole flow.
//
//	@contact.name	Perch
//	@license.name	MIT
//
//	@BasePath		/
package httpapp
