package sqlinline

const QSelectUserCredits = `--sql c57a30d9-8e14-4fb6-9a02-3de6b7f145c8
select coalesce(credits, 0)
from users
where id = $1::uuid
limit 1;
`
