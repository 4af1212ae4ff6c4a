package records

const userFields = `
	id
	firstName
	lastName
	email
	isActive
	hasPaid
	accessStart
	accessEnd
	createdAt
	roles { items { name } }
	student { id coach { id } }
`

const userCreateMutation = `mutation UserCreate($data: UserCreateInput!) {
	userCreate(data: $data) {` + userFields + `}
}`

const userUpdateActiveMutation = `mutation UserSetActive($id: ID!, $isActive: Boolean!) {
	userUpdate(filter: { id: $id }, data: { isActive: $isActive }) {` + userFields + `}
}`

const usersByEmailQuery = `query UsersByEmail($email: String!) {
	usersList(filter: { email: { equalTo: $email } }, first: 1) {
		items {` + userFields + `}
	}
}`

const studentCreateMutation = `mutation StudentCreate($data: StudentCreateInput!) {
	studentCreate(data: $data) { id }
}`

const coachCreateMutation = `mutation CoachCreate($data: CoachCreateInput!) {
	coachCreate(data: $data) { id }
}`

const assignCoachMutation = `mutation AssignCoach($studentId: ID!, $coachId: ID!) {
	studentUpdate(filter: { id: $studentId }, data: { coach: { connect: { id: $coachId } } }) { id }
}`

